package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/slot"
	"github.com/jwalitptl/hospital-api/internal/service/staff"
)

type Handler struct {
	slots *slot.Service
	staff *staff.Service
}

func NewHandler(slotSvc *slot.Service, staffSvc *staff.Service) *Handler {
	return &Handler{slots: slotSvc, staff: staffSvc}
}

// RegisterRoutes expects r to admit doctors only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/slots", h.ListSlots)
	r.POST("/slots", h.CreateSlot)
	r.POST("/slots/batch", h.CreateSlots)
	r.DELETE("/slots/:id", h.DeleteSlot)
	r.PUT("/profile", h.UpdateProfile)
}

func (h *Handler) ListSlots(c *gin.Context) {
	slots, err := h.slots.ListUpcoming(c.Request.Context(), handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, slots)
}

func (h *Handler) CreateSlot(c *gin.Context) {
	var req model.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	created, err := h.slots.CreateSlot(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, created)
}

func (h *Handler) CreateSlots(c *gin.Context) {
	var req model.CreateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	result, err := h.slots.CreateSlots(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, result)
}

func (h *Handler) DeleteSlot(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if err := h.slots.DeleteSlot(c.Request.Context(), handler.Actor(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdateDoctorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	doctor, err := h.staff.UpdateDoctorProfile(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, doctor)
}
