package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// middleware counts every request once its final status is known.
// Errors are handed to the HTTPErrorHandler here so that the status is set.
func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(ctx.Request().Method, route, strconv.Itoa(ctx.Response().Status)).Inc()
			return nil
		}
	}
}
