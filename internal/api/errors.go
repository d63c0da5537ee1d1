package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialnet/network/internal/social"
	"github.com/socialnet/network/pkg/logging"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

var errInternal = NewError(http.StatusInternalServerError, "Internal server error.")

// FromError maps a service error to its HTTP status. Errors that are not
// *social.Error become a 500 with a generic message.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var e *social.Error
	if !errors.As(err, &e) {
		return errInternal
	}

	switch {
	case errors.Is(e, social.ErrNotFound):
		return NewError(http.StatusNotFound, e.Message)
	case errors.Is(e, social.ErrForbidden):
		return NewError(http.StatusForbidden, e.Message)
	case errors.Is(e, social.ErrBadRequest):
		return NewError(http.StatusBadRequest, e.Message)
	case errors.Is(e, social.ErrConflict):
		return NewError(http.StatusConflict, e.Message)
	case errors.Is(e, social.ErrUnauthorized):
		return NewError(http.StatusUnauthorized, e.Message)
	default:
		return errInternal
	}
}

// abortWithError writes {"error": message} with the status err maps to.
// Internal errors are logged with the request logger.
func abortWithError(c *gin.Context, err error) {
	apiErr := FromError(err)
	if apiErr.Code >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(apiErr.Code, gin.H{"error": apiErr.Message})
}
