package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout returns middleware that bounds each request with a context
// deadline. Handlers observe the deadline through the request context; if it
// expires before the handler finishes, the client gets a 504 Gateway Timeout.
// Handlers that legitimately need longer, such as report exports, derive
// their own context from the request.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			timedOut, err := runToDeadline(ctx, c, next)
			if timedOut {
				return writeGatewayTimeout(c)
			}
			return err
		}
	}
}

// runToDeadline executes the handler in its own goroutine and waits for
// whichever comes first: the handler's result or the context deadline.
// timedOut reports that the deadline won; any other cancellation, such as a
// client disconnect, propagates as err.
func runToDeadline(ctx context.Context, c echo.Context, next echo.HandlerFunc) (timedOut bool, err error) {
	result := make(chan error, 1)
	go func() { result <- next(c) }()

	select {
	case err := <-result:
		return false, err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return true, nil
		}
		return false, ctx.Err()
	}
}

func writeGatewayTimeout(c echo.Context) error {
	// A partial write may have committed the response already, in which case
	// appending a timeout body would corrupt the stream.
	if c.Response().Committed {
		return nil
	}
	return c.JSON(http.StatusGatewayTimeout, map[string]string{
		"error": "request processing exceeded the allowed time limit",
	})
}
