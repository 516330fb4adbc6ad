package httpgin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/venue-hold/internal/domain"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, logger *slog.Logger, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ConflictResponse{
			Error:                 domain.ErrConflict.Error(),
			Conflicts:             nonNil(conflict.Conflicts),
			SuggestedAlternatives: nonNil(conflict.Alternatives),
		})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, ConflictResponse{
			Error:                 domain.ErrConflict.Error(),
			Conflicts:             []domain.Conflict{},
			SuggestedAlternatives: []domain.TimeRange{},
		})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("not found", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrExpired):
		logger.Info("expired", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusGone, ErrorResponse{Error: "expired"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		logger.Error("store unavailable", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service unavailable"})
	default:
		logger.Error("unhandled error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
