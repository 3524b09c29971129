package v1

import (
	"strings"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type enqueueBody struct {
	RequesterID string            `json:"requester_id"`
	DisplayName string            `json:"display_name"`
	Text        string            `json:"text"`
	Voice       string            `json:"voice"`
	Engine      string            `json:"engine"`
	Options     map[string]string `json:"options"`
	Priority    *int              `json:"priority"`
	SkipDedup   bool              `json:"skip_dedup"`
}

type admissionResponse struct {
	datastructures.AdmissionResult
	EstimatedWaitMs int64 `json:"estimated_wait_ms,omitempty"`
	RetryAfterMs    int64 `json:"retry_after_ms,omitempty"`
}

type priorityBody struct {
	Priority *int `json:"priority"`
}

func sendJSON(c *fiber.Ctx, status int, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(status).Send(data)
}

// Queue is the admin surface of the scheduler.
func Queue(ctx global.Context, app fiber.Router) {
	log := logrus.WithField("component", "api")

	app.Get("/", func(c *fiber.Ctx) error {
		return sendJSON(c, 200, ctx.Inst().Scheduler.Info())
	})

	app.Post("/", func(c *fiber.Ctx) error {
		body := enqueueBody{}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return sendJSON(c, 400, fiber.Map{"error": "bad json"})
		}

		cfg := ctx.Config()
		req := datastructures.Request{
			RequesterID: body.RequesterID,
			DisplayName: body.DisplayName,
			Text:        body.Text,
			Voice:       body.Voice,
			Engine:      body.Engine,
			Options:     body.Options,
			Priority:    body.Priority,
			SkipDedup:   body.SkipDedup,
			Source:      datastructures.SourceManual,
		}
		if strings.TrimSpace(req.RequesterID) == "" {
			req.RequesterID = "api"
		}
		if req.DisplayName == "" {
			req.DisplayName = req.RequesterID
		}
		if req.Voice == "" {
			req.Voice = cfg.Tts.DefaultVoice
		} else if req.Voice != cfg.Tts.DefaultVoice {
			req.HasAssignedVoice = true
		}
		if req.Engine == "" {
			req.Engine = cfg.Tts.DefaultEngine
		}

		res := ctx.Inst().Scheduler.Enqueue(req)
		out := admissionResponse{
			AdmissionResult: res,
			EstimatedWaitMs: res.EstimatedWaitMs(),
			RetryAfterMs:    res.RetryAfterMs(),
		}
		if res.Accepted {
			log.WithField("id", res.ID).Info("manual tts queued")
			return sendJSON(c, 201, out)
		}

		switch res.Reason {
		case datastructures.RejectRateLimit:
			return sendJSON(c, 429, out)
		case datastructures.RejectQueueFull:
			return sendJSON(c, 503, out)
		case datastructures.RejectDuplicate:
			return sendJSON(c, 409, out)
		default:
			return sendJSON(c, 400, out)
		}
	})

	app.Delete("/", func(c *fiber.Ctx) error {
		return sendJSON(c, 200, fiber.Map{"removed": ctx.Inst().Scheduler.Clear()})
	})

	app.Post("/skip", func(c *fiber.Ctx) error {
		return sendJSON(c, 200, fiber.Map{"skipped": ctx.Inst().Scheduler.SkipCurrent()})
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		return sendJSON(c, 200, ctx.Inst().Scheduler.Stats())
	})

	app.Delete("/stats", func(c *fiber.Ctx) error {
		ctx.Inst().Scheduler.ResetStats()
		return c.SendStatus(204)
	})

	app.Delete("/ratelimit", func(c *fiber.Ctx) error {
		ctx.Inst().Scheduler.ClearAllRateLimits()
		return c.SendStatus(204)
	})

	app.Delete("/ratelimit/:requester", func(c *fiber.Ctx) error {
		ctx.Inst().Scheduler.ClearRateLimit(c.Params("requester"))
		return c.SendStatus(204)
	})

	app.Delete("/dedup", func(c *fiber.Ctx) error {
		ctx.Inst().Scheduler.ClearDeduplicationCache()
		return c.SendStatus(204)
	})

	app.Delete("/:id", func(c *fiber.Ctx) error {
		if !ctx.Inst().Scheduler.RemoveByID(c.Params("id")) {
			return c.SendStatus(404)
		}
		return c.SendStatus(204)
	})

	app.Patch("/:id/priority", func(c *fiber.Ctx) error {
		body := priorityBody{}
		if err := json.Unmarshal(c.Body(), &body); err != nil || body.Priority == nil {
			return sendJSON(c, 400, fiber.Map{"error": "priority is required"})
		}
		if !ctx.Inst().Scheduler.SetPriority(c.Params("id"), *body.Priority) {
			return c.SendStatus(404)
		}
		return c.SendStatus(204)
	})
}
