package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"galleryapi/internal/cache"
)

// RateLimit allows limit requests per client IP within window. Counters live
// in the shared WindowCounter and expire with the window. If the counter
// store fails the request is let through.
func RateLimit(counter cache.WindowCounter, scope string, limit int, window time.Duration, log *zap.Logger) fiber.Handler {
	if counter == nil || limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	log = log.Named("ratelimit")

	return func(c *fiber.Ctx) error {
		count, ttl, err := counter.Hit(c.UserContext(), scope+":"+c.IP(), window)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.String("scope", scope), zap.Error(err))
			return c.Next()
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many download requests, please try again later")
		}
		return c.Next()
	}
}
