package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medsched/clinic-api/internal/handler"
	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/service/appointment"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:recordNumber", h.GetAppointment)
		appointments.PATCH("/:recordNumber", h.UpdateAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	apt, err := h.service.Create(c.Request.Context(), handler.Identity(c), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(apt))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), handler.Identity(c), c.Param("recordNumber"))
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(detail))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	summaries, err := h.service.List(c.Request.Context(), handler.Identity(c), c.Query("patient"))
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summaries))
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	apt, err := h.service.Update(c.Request.Context(), handler.Identity(c), c.Param("recordNumber"), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}
