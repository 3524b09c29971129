package v1

import (
	"strconv"

	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/admiralbulldogtv/yapperqueue/src/redis"
	"github.com/admiralbulldogtv/yapperqueue/src/tts"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func Wav(ctx global.Context) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		id, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return c.SendStatus(404)
		}

		result, err := ctx.Inst().Redis.Get(c.Context(), tts.WavKey(id.Hex()))
		if err != nil {
			if err == redis.Nil {
				return c.SendStatus(404)
			}
			logrus.WithError(err).Error("failed to get tts from redis")
			return c.SendStatus(500)
		}

		data := []byte(result)

		c.Set("Content-Type", "audio/wav")
		c.Set("Content-Length", strconv.Itoa(len(data)))

		return c.Status(200).Send(data)
	}
}
