// Package directory serves the public lookups the booking form needs.
package directory

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/service/slot"
	"github.com/jwalitptl/hospital-api/internal/service/staff"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type Handler struct {
	staff *staff.Service
	slots *slot.Service
}

func NewHandler(staffSvc *staff.Service, slotSvc *slot.Service) *Handler {
	return &Handler{staff: staffSvc, slots: slotSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/specializations", h.ListSpecializations)
	r.GET("/specializations/:id/doctors", h.ListDoctors)
	r.GET("/doctors/:id", h.GetDoctor)
	r.GET("/doctors/:id/slots", h.ListAvailableSlots)
}

func (h *Handler) ListSpecializations(c *gin.Context) {
	specs, err := h.staff.ListSpecializations(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, specs)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	doctors, err := h.staff.ListDoctorsBySpecialization(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	doctor, err := h.staff.GetDoctor(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, doctor)
}

// ListAvailableSlots returns the unbooked times of a doctor on ?date=.
func (h *Handler) ListAvailableSlots(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	date := c.Query("date")
	if date == "" {
		handler.RespondError(c, apperrors.InvalidInput("date query parameter is required", nil))
		return
	}
	times, err := h.slots.ListAvailable(c.Request.Context(), id, date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, gin.H{"doctor_id": id, "date": date, "times": times})
}
