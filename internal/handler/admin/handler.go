package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/staff"
)

type Handler struct {
	service *staff.Service
}

func NewHandler(service *staff.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects r to admit admins only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/staff", h.ListStaff)
	r.POST("/specializations", h.CreateSpecialization)
	r.POST("/doctors", h.AddDoctor)
	r.POST("/receptionists", h.AddReceptionist)
	r.DELETE("/doctors/:id", h.DeleteDoctor)
	r.DELETE("/receptionists/:id", h.DeleteReceptionist)
}

func (h *Handler) ListStaff(c *gin.Context) {
	members, err := h.service.ListStaff(c.Request.Context(), handler.Actor(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, members)
}

func (h *Handler) CreateSpecialization(c *gin.Context) {
	var req model.CreateSpecializationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	spec, err := h.service.CreateSpecialization(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, spec)
}

func (h *Handler) AddDoctor(c *gin.Context) {
	var req model.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	doctor, err := h.service.AddDoctor(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, doctor)
}

func (h *Handler) AddReceptionist(c *gin.Context) {
	var req model.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	rec, err := h.service.AddReceptionist(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, rec)
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if err := h.service.DeleteDoctor(c.Request.Context(), handler.Actor(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteReceptionist(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if err := h.service.DeleteReceptionist(c.Request.Context(), handler.Actor(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
