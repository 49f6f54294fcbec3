package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const internalMessage = "internal error, please try again later"

// respondError maps the service error taxonomy to a status code. Server-side
// failures never expose the underlying error text.
func respondError(c *gin.Context, err error) {
	traceID := middleware.TraceID(c)
	status, message := classify(err)

	body := gin.H{"error": message}
	if traceID != "" {
		body["trace_id"] = traceID
	}

	var dup *service.DuplicatePendingError
	if errors.As(err, &dup) {
		body["existing_id"] = dup.ExistingID
	}

	if status >= http.StatusInternalServerError {
		logger.Log.Error("Request failed",
			zap.String("trace_id", traceID),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrIdentityUnresolved):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrDuplicatePendingPurchase),
		errors.Is(err, service.ErrAlreadyReviewed),
		errors.Is(err, service.ErrEmailAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrStorageFailure):
		return http.StatusBadGateway, "file storage is unavailable, please try again later"
	default:
		return http.StatusInternalServerError, internalMessage
	}
}

func badRequest(c *gin.Context, message string) {
	respondError(c, fmt.Errorf("%w: %s", service.ErrInvalidArgument, message))
}

// paramUUID parses a path parameter, answering 400 when it is not a uuid.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
