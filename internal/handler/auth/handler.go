package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medsched/clinic-api/internal/handler"
	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/service/auth"
	"github.com/medsched/clinic-api/internal/service/user"
)

type Handler struct {
	auth  *auth.Service
	users *user.Service
}

func NewHandler(authSvc *auth.Service, users *user.Service) *Handler {
	return &Handler{auth: authSvc, users: users}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	u, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(u))
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}
