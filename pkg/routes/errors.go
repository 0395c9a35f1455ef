package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/core"
)

// NewHTTPErrorHandler maps domain errors to status codes and logs server errors.
func NewHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code    int
			message interface{}
			vErr    *core.ValidationError
			hErr    *echo.HTTPError
		)

		switch {
		case errors.As(err, &hErr):
			code = hErr.Code
			message = echo.Map{"error": hErr.Message}
		case errors.As(err, &vErr):
			code = http.StatusBadRequest
			body := echo.Map{"error": vErr.Error()}
			if len(vErr.Fields) > 0 {
				fields := make(map[string]string, len(vErr.Fields))
				for _, f := range vErr.Fields {
					fields[f.Field] = f.Error
				}
				body["fields"] = fields
			}
			message = body
		case core.IsForbidden(err):
			code = http.StatusForbidden
			message = echo.Map{"error": err.Error()}
		case core.IsNotFound(err):
			code = http.StatusNotFound
			message = echo.Map{"error": err.Error()}
		case core.IsConflict(err):
			code = http.StatusConflict
			message = echo.Map{"error": err.Error()}
		default:
			code = http.StatusInternalServerError
			message = echo.Map{"error": http.StatusText(code)}
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		if c.Echo().Debug && code == http.StatusInternalServerError {
			message = echo.Map{"error": err.Error()}
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			logger.Warn("failed to write error response", zap.Error(err))
		}
	}
}
