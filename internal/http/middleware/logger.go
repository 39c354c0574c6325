package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorLocalKey holds an error a handler already answered but wants logged.
const ErrorLocalKey = "handled_error"

// Logger writes one "http_request" entry per request with request_id,
// method, path, status and latency in milliseconds. Server errors are logged
// at error level, client errors at warn.
func Logger(log *zap.Logger) fiber.Handler {
	log = log.Named("http")

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		level := zapcore.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zapcore.WarnLevel
		}

		fields := []zap.Field{
			zap.String("request_id", utils.CopyString(RequestIDFrom(c))),
			zap.String("method", utils.CopyString(c.Method())),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", status),
			zap.Float64("latency", float64(time.Since(start).Microseconds())/1000),
			zap.String("ip", utils.CopyString(c.IP())),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else if handled, ok := c.Locals(ErrorLocalKey).(error); ok {
			fields = append(fields, zap.Error(handled))
		}
		log.Check(level, "http_request").Write(fields...)

		return err
	}
}
