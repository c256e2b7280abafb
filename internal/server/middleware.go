package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

func Logger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			attrs := []any{
				"requestID", c.Response().Header().Get(echo.HeaderXRequestID),
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"latency", time.Since(start),
				"remoteIP", c.RealIP(),
			}

			if err != nil {
				log.ErrorContext(req.Context(), "Request failed", append(attrs, "error", err)...)
			} else {
				log.InfoContext(req.Context(), "Request is served", attrs...)
			}

			return nil
		}
	}
}

func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					log.ErrorContext(c.Request().Context(), "Panic is recovered",
						"requestID", c.Response().Header().Get(echo.HeaderXRequestID),
						"panic", fmt.Sprintf("%v", r),
						"stack", string(stack[:n]))

					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()

			return next(c)
		}
	}
}
