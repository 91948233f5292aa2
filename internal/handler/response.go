package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medsched/clinic-api/internal/model"
)

// IdentityKey is the gin context key under which the auth middleware
// stores the authenticated caller.
const IdentityKey = "identity"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error writes an error response using the status the error carries, or
// 500 for untyped failures.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if sc, ok := err.(interface{ StatusCode() int }); ok {
		status = sc.StatusCode()
	}
	c.JSON(status, NewErrorResponse(err.Error()))
}

// Identity returns the authenticated caller set by the auth middleware.
func Identity(c *gin.Context) model.Identity {
	v, _ := c.Get(IdentityKey)
	identity, _ := v.(model.Identity)
	return identity
}
