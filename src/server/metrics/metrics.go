// Package metrics exposes the scheduler counters in the prometheus format.
package metrics

import (
	"sync"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yapper"

// total turns a stats field that ResetStats can zero into a value that only grows.
// A drop below the last reading is taken as a reset and everything counted since is added.
type total struct {
	mtx   sync.Mutex
	last  int64
	sum   int64
	value func() int64
}

func newTotal(sched instance.Scheduler, value func(s datastructures.Stats) int64) *total {
	return &total{value: func() int64 { return value(sched.Stats()) }}
}

func (t *total) read() float64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	v := t.value()
	if v < t.last {
		t.last = 0
	}
	t.sum += v - t.last
	t.last = v
	return float64(t.sum)
}

func counter(reg *prometheus.Registry, sched instance.Scheduler, name, help string, value func(s datastructures.Stats) int64) {
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      name,
		Help:      help,
	}, newTotal(sched, value).read))
}

func NewRegistry(sched instance.Scheduler) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	counter(reg, sched, "admitted_total", "Requests admitted to the queue.", func(s datastructures.Stats) int64 { return s.Admitted })
	counter(reg, sched, "played_total", "Items played or skipped.", func(s datastructures.Stats) int64 { return s.Played })
	counter(reg, sched, "play_errors_total", "Items whose playback failed.", func(s datastructures.Stats) int64 { return s.PlayErrors })
	counter(reg, sched, "pregen_hits_total", "Items that had audio ready when dequeued.", func(s datastructures.Stats) int64 { return s.PreGenHits })
	counter(reg, sched, "pregen_misses_total", "Items that had no audio when dequeued.", func(s datastructures.Stats) int64 { return s.PreGenMisses })
	counter(reg, sched, "pregen_errors_total", "Failed pre-generation tasks.", func(s datastructures.Stats) int64 { return s.PreGenErrors })
	counter(reg, sched, "pregen_discarded_total", "Pre-generation results thrown away.", func(s datastructures.Stats) int64 { return s.PreGenDiscarded })

	dropped := []struct {
		reason datastructures.RejectReason
		value  func(s datastructures.Stats) int64
	}{
		{datastructures.RejectDuplicate, func(s datastructures.Stats) int64 { return s.DroppedDuplicate }},
		{datastructures.RejectRateLimit, func(s datastructures.Stats) int64 { return s.DroppedRateLimit }},
		{datastructures.RejectQueueFull, func(s datastructures.Stats) int64 { return s.DroppedCapacity }},
		{datastructures.RejectError, func(s datastructures.Stats) int64 { return s.DroppedError }},
	}
	for _, d := range dropped {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "queue",
			Name:        "dropped_total",
			Help:        "Requests rejected on admission.",
			ConstLabels: prometheus.Labels{"reason": string(d.reason)},
		}, newTotal(sched, d.value).read))
	}

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "size",
		Help:      "Items waiting in the queue.",
	}, func() float64 {
		return float64(sched.Size())
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "pregen_hit_rate",
		Help:      "Share of dequeued items that had audio ready.",
	}, func() float64 {
		return sched.Stats().PreGenHitRate
	}))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "processing",
		Help:      "1 while the consumption loop runs.",
	}, func() float64 {
		if sched.Processing() {
			return 1
		}
		return 0
	}))

	return reg
}

func Metrics(sched instance.Scheduler, app fiber.Router) {
	reg := NewRegistry(sched)
	app.Get("/", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}
