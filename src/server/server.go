package server

import (
	"strings"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/admiralbulldogtv/yapperqueue/src/server/health"
	"github.com/admiralbulldogtv/yapperqueue/src/server/metrics"
	"github.com/admiralbulldogtv/yapperqueue/src/server/middleware"
	v1 "github.com/admiralbulldogtv/yapperqueue/src/server/v1"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
)

// NewApp wires every route onto a fresh fiber app.
func NewApp(ctx global.Context) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		DisableKeepalive:      true,
	})

	app.Use(middleware.Logger())

	if len(ctx.Config().Cors) != 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(ctx.Config().Cors, ","),
		}))
	}

	health.Health(ctx, app.Group("/health"))
	v1.Api(ctx, app.Group("/v1"))

	if ctx.Config().MetricsEnabled {
		metrics.Metrics(ctx.Inst().Scheduler, app.Group("/metrics"))
	}

	app.Use("/", func(c *fiber.Ctx) error {
		return c.SendStatus(404)
	})

	return app
}

func New(ctx global.Context) <-chan struct{} {
	done := make(chan struct{})

	app := NewApp(ctx)

	go func() {
		if err := app.Listen(ctx.Config().ApiBind); err != nil {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
		close(done)
	}()

	logrus.Infof("Api started on %s", ctx.Config().ApiBind)

	return done
}
