package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/gin-gonic/gin"
)

const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeCapacityExceeded     = "CAPACITY_EXCEEDED"
	CodeDuplicateReservation = "DUPLICATE_RESERVATION"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL_ERROR"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrValidation, http.StatusBadRequest, CodeInvalidInput},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrDuplicateReservation, http.StatusConflict, CodeDuplicateReservation},
	{domain.ErrCapacityExceeded, http.StatusConflict, CodeCapacityExceeded},
	{domain.ErrInvalidToken, http.StatusBadRequest, CodeInvalidToken},
	{domain.ErrConflict, http.StatusConflict, CodeConflict},
	{domain.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden, CodeForbidden},
}

// respondError maps domain errors to a status and a stable code. Anything unknown is a 500 with a generic message.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.AbortWithStatusJSON(e.status, errorBody{Code: e.code, Message: err.Error(), RequestID: logger.RequestID(ctx)})
			return
		}
	}
	logger.ErrorContext(ctx, "request failed", "error", err, "path", c.FullPath())
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Code: CodeInternal, Message: "internal error", RequestID: logger.RequestID(ctx)})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Code: CodeInvalidInput, Message: message, RequestID: logger.RequestID(c.Request.Context())})
}
