package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkpulse/internal/shortener"
	"go.uber.org/zap"
)

// toHTTPError maps domain errors onto huma's error envelope. Anything
// unrecognised becomes a bare 500 and is logged here, never returned.
func toHTTPError(err error, location string, logger *zap.Logger) huma.StatusError {
	var verr *shortener.ValidationError

	switch {
	case errors.As(err, &verr):
		details := make([]error, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, &huma.ErrorDetail{
				Message:  f.Message,
				Location: location + "." + f.Field,
				Value:    f.Value,
			})
		}

		return huma.Error400BadRequest("validation failed", details...)
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short link not found")
	case errors.Is(err, shortener.ErrConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, shortener.ErrUnauthorized):
		return huma.Error401Unauthorized("unauthorized")
	case errors.Is(err, shortener.ErrForbidden):
		return huma.Error403Forbidden("forbidden")
	default:
		logger.Error("request failed", zap.Error(err))

		return huma.Error500InternalServerError("internal server error")
	}
}
