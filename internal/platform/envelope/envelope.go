// Package envelope writes the {success, data, totalCount, totalPages,
// message} response shape shared by every sandbox endpoint.
package envelope

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/platform/store"
	"github.com/schoolhealth/nurse-console/pkg/pagination"
)

// OK writes a success envelope.
func OK(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, console.Envelope[interface{}]{Success: true, Data: data, Message: message})
}

// Page writes a success envelope for one page of a list.
func Page(c echo.Context, data interface{}, total int, p pagination.Params) error {
	return c.JSON(http.StatusOK, pagination.NewResponse(data, total, p))
}

// Fail writes a failure envelope carrying message.
func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, console.Envelope[interface{}]{Success: false, Message: message})
}

// Error writes the failure envelope matching err. Server faults are logged
// through the request logger and answered with the generic status text.
func Error(c echo.Context, err error) error {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return Fail(c, status, http.StatusText(status))
	}
	return Fail(c, status, err.Error())
}

// StatusOf maps domain errors onto HTTP status codes.
func StatusOf(err error) int {
	var ve *console.ValidationError
	var ie *console.InvalidTransitionError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ie):
		return http.StatusConflict
	case errors.Is(err, console.ErrNotCancelable):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors escaping handlers and middleware, such as
// authentication failures, as failure envelopes.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			status = StatusOf(err)
			if status < http.StatusInternalServerError {
				message = err.Error()
			}
		}
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = Fail(c, status, message)
	}
}
