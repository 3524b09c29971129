package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Auth only lets through requests bearing token. An empty token locks the routes.
func Auth(token string) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if token == "" || !strings.HasPrefix(auth, "Bearer ") {
			return c.SendStatus(401)
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(token)) != 1 {
			return c.SendStatus(401)
		}
		return c.Next()
	}
}
