package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aashish23092/slice-receipts/dto"
)

// statusFor maps service errors to an HTTP status and an error code.
func statusFor(err error) (int, string) {
	var ve *dto.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, dto.ErrEmptyUpload), errors.Is(err, dto.ErrInvalidImage):
		return http.StatusBadRequest, "INVALID_UPLOAD"
	case errors.Is(err, dto.ErrLobbyNotFound):
		return http.StatusNotFound, "LOBBY_NOT_FOUND"
	case errors.Is(err, dto.ErrItemNotFound):
		return http.StatusNotFound, "ITEM_NOT_FOUND"
	case errors.Is(err, dto.ErrInvalidPasscode):
		return http.StatusUnauthorized, "INVALID_PASSCODE"
	case errors.Is(err, dto.ErrHostRequired), errors.Is(err, dto.ErrNotParticipant):
		return http.StatusForbidden, "FORBIDDEN"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// sendError sends a structured error response
func sendError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	} else {
		slog.Debug("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, dto.ErrorResponse{
		Error:   code,
		Message: err.Error(),
		Code:    status,
	})
}

// sendBindError reports a request body or query that could not be bound.
func sendBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "INVALID_REQUEST",
		Message: err.Error(),
		Code:    http.StatusBadRequest,
	})
}
