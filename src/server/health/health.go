package health

import (
	"context"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/gofiber/fiber/v2"

	log "github.com/sirupsen/logrus"
)

func Health(ctx global.Context, app fiber.Router) {
	app.Get("/", func(c *fiber.Ctx) error {
		isDown := false

		if redis := ctx.Inst().Redis; redis != nil {
			redisCtx, cancel := context.WithTimeout(c.Context(), time.Second*10)
			defer cancel()
			if err := redis.Ping(redisCtx); err != nil {
				log.WithError(err).Error("health, REDIS IS DOWN")
				isDown = true
			}
		}

		if mongo := ctx.Inst().Mongo; mongo != nil {
			mongoCtx, cancel := context.WithTimeout(c.Context(), time.Second*10)
			defer cancel()
			if err := mongo.Ping(mongoCtx); err != nil {
				log.WithError(err).Error("health, MONGO IS DOWN")
				isDown = true
			}
		}

		if isDown {
			return c.SendStatus(503)
		}

		return c.Status(200).SendString("OK")
	})
}
