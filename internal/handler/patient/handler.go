package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medsched/clinic-api/internal/handler"
	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/service/appointment"
	"github.com/medsched/clinic-api/internal/service/patient"
)

type Handler struct {
	service      *patient.Service
	appointments *appointment.Service
}

func NewHandler(service *patient.Service, appointments *appointment.Service) *Handler {
	return &Handler{service: service, appointments: appointments}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/lookup", h.LookupPatients)
		patients.GET("/:recordNumber", h.GetPatient)
		patients.PUT("/:recordNumber", h.UpdatePatient)
		patients.DELETE("/:recordNumber", h.DeletePatient)
		patients.GET("/:recordNumber/appointments", h.ListPatientAppointments)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	p, err := h.service.Create(c.Request.Context(), handler.Identity(c), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("recordNumber"))
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.service.List(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

// LookupPatients backs the booking form's autocomplete.
func (h *Handler) LookupPatients(c *gin.Context) {
	matches, err := h.service.Lookup(c.Request.Context(), c.Query("q"))
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(matches))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req model.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	p, err := h.service.Update(c.Request.Context(), handler.Identity(c), c.Param("recordNumber"), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), handler.Identity(c), c.Param("recordNumber")); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// ListPatientAppointments returns one patient's booking history, still
// scoped to the caller's own bookings for clinicians.
func (h *Handler) ListPatientAppointments(c *gin.Context) {
	recordNumber := c.Param("recordNumber")
	if _, err := h.service.Get(c.Request.Context(), recordNumber); err != nil {
		handler.Error(c, err)
		return
	}

	summaries, err := h.appointments.List(c.Request.Context(), handler.Identity(c), recordNumber)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summaries))
}
