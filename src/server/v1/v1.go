package v1

import (
	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/admiralbulldogtv/yapperqueue/src/server/middleware"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Api(ctx global.Context, app fiber.Router) {
	app.Get("/sse/:token", SSE(ctx))

	app.Get("/wav/:id.wav", Wav(ctx))

	Overlay(ctx, app.Group("/overlay/:token"))

	Queue(ctx, app.Group("/queue", middleware.Auth(ctx.Config().ApiToken)))
}
