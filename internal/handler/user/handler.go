package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medsched/clinic-api/internal/handler"
	"github.com/medsched/clinic-api/internal/service/user"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/clinicians", h.ListClinicians)
}

// ListClinicians returns the doctor directory for the booking form.
func (h *Handler) ListClinicians(c *gin.Context) {
	clinicians, err := h.service.ListClinicians(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(clinicians))
}
