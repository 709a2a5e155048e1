package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/booking"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// lookupMissMessage is the single answer for references that are malformed
// or match nothing.
const lookupMissMessage = "no appointment found"

type Handler struct {
	booking      *booking.Service
	appointments *appointment.Service
}

func NewHandler(bookingSvc *booking.Service, appointmentSvc *appointment.Service) *Handler {
	return &Handler{booking: bookingSvc, appointments: appointmentSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/appointments", h.Book)
	r.POST("/appointments/lookup", h.Lookup)
}

// RegisterReceptionRoutes expects r to admit receptionists only.
func (h *Handler) RegisterReceptionRoutes(r *gin.RouterGroup) {
	r.GET("/appointments", h.ListForReception)
	r.POST("/appointments/:id/confirm", h.Confirm)
}

// RegisterDoctorRoutes expects r to admit doctors only.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	r.GET("/appointments", h.ListDoctorAppointments)
	r.PATCH("/appointments/:id/status", h.UpdateVisitStatus)
}

func (h *Handler) Book(c *gin.Context) {
	var req model.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	result, err := h.booking.Book(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, result)
}

func (h *Handler) Lookup(c *gin.Context) {
	var req model.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	view, err := h.appointments.Lookup(c.Request.Context(), req.Reference)
	if err != nil {
		// Malformed and unknown references get the same answer so the
		// response does not reveal which references are well-formed.
		if apperrors.Is(err, apperrors.ErrNotFound) || apperrors.Is(err, apperrors.ErrMalformedReference) {
			c.AbortWithStatusJSON(http.StatusNotFound, handler.NewErrorResponse(lookupMissMessage))
			return
		}
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, view)
}

func (h *Handler) ListForReception(c *gin.Context) {
	views, err := h.appointments.ListForReception(c.Request.Context(), handler.Actor(c), c.Query("date"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, views)
}

func (h *Handler) Confirm(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	confirmation, err := h.appointments.Confirm(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, confirmation)
}

func (h *Handler) ListDoctorAppointments(c *gin.Context) {
	status := model.VisitStatus(c.Query("status"))
	views, err := h.appointments.ListDoctorAppointments(c.Request.Context(), handler.Actor(c), c.Query("date"), status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, views)
}

func (h *Handler) UpdateVisitStatus(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	var req model.UpdateVisitStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	if err := h.appointments.SetCompleted(c.Request.Context(), handler.Actor(c), id, *req.Completed); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, gin.H{"appointment_id": id, "completed": *req.Completed})
}
