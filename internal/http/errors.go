package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/intervention"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

// errBadRequest marks request validation failures raised by handlers.
var errBadRequest = errors.New("bad request")

var badRequestErrors = []error{
	errBadRequest,
	domain.ErrInvalidOverrides,
	intervention.ErrInvalidStep,
	intervention.ErrInvalidTransition,
	intervention.ErrInvalidRating,
}

var notFoundErrors = []error{
	store.ErrNotFound,
	intervention.ErrUnknownIntervention,
}

func statusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	if errors.Is(err, store.ErrVersionConflict) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// handleError writes err as an ErrorResponse. Internal errors are logged and
// their details withheld from the client.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		msg = http.StatusText(status)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if werr := c.JSON(status, ErrorResponse{Error: msg}); werr != nil {
		s.logger.Warn(c.Request().Context(), "writing error response failed", zap.Error(werr))
	}
}
