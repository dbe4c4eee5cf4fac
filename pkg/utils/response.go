package utils

import (
	"errors"
	"net/http"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

func SuccessResponse(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, code int, message string, err error) {
	response := APIResponse{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
		var appErr *errs.Error
		if errors.As(err, &appErr) {
			response.Kind = string(appErr.Kind)
		}
	}

	c.JSON(code, response)
}

// StatusFor maps an error kind to the HTTP status reported for it.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, errs.ErrReferential):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainError writes err with the status StatusFor picks.
func DomainError(c *gin.Context, message string, err error) {
	ErrorResponse(c, StatusFor(err), message, err)
}
