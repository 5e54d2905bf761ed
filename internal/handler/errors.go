package handler

import (
	"errors"
	"net/http"

	"backend/internal/apperr"
	"backend/internal/middleware"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// errorStatus maps the service error taxonomy onto HTTP status codes.
// Both precondition families (stale state and invalid transition) land on
// 409 so clients treat them uniformly: re-pull, then retry or give up.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrVehicleConflict),
		errors.Is(err, apperr.ErrStaleState),
		errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	c.JSON(status, response.Error(status, err.Error()))
}

// actorID resolves the authenticated subject from the gin context. The
// middleware guarantees it is set on protected routes; a missing or
// malformed id means the token claims are unusable.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid subject in token"))
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid id: must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
