package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func Logger() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		l := logrus.WithFields(logrus.Fields{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(start) / time.Millisecond,
			"ip":       c.IP(),
		})
		if err != nil {
			l.WithError(err).Error("request failed")
		} else {
			l.Debug("request")
		}
		return err
	}
}
