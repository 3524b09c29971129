package v1

import (
	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/admiralbulldogtv/yapperqueue/src/mongo"
	"github.com/admiralbulldogtv/yapperqueue/src/tts"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Overlay routes are called by the browser source, authenticated by the overlay token in the path.
func Overlay(ctx global.Context, app fiber.Router) {
	app.Post("/done/:id", func(c *fiber.Ctx) error {
		tkn, err := primitive.ObjectIDFromHex(c.Params("token"))
		if err != nil {
			return c.SendStatus(401)
		}
		id, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return c.SendStatus(400)
		}

		overlay, err := ctx.Inst().Mongo.FetchOverlay(c.Context(), tkn)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return c.SendStatus(401)
			}
			logrus.WithError(err).Error("failed to fetch overlay")
			return c.SendStatus(500)
		}

		if err := ctx.Inst().Redis.Publish(c.Context(), tts.DoneKey(overlay.ChannelID), id.Hex()); err != nil {
			logrus.WithError(err).Error("failed to publish done")
			return c.SendStatus(500)
		}

		return c.SendStatus(204)
	})
}
