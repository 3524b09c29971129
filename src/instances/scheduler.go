package instance

import (
	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
)

// Scheduler is the surface of the request scheduler used by ingestion and the api.
type Scheduler interface {
	Enqueue(req datastructures.Request) datastructures.AdmissionResult
	Peek(count int) []datastructures.QueueItem
	RemoveByID(id string) bool
	SetPriority(id string, priority int) bool
	SkipCurrent() bool
	Clear() int
	Info() datastructures.QueueInfo
	Stats() datastructures.Stats
	ResetStats()
	ClearRateLimit(requesterID string)
	ClearAllRateLimits()
	ClearDeduplicationCache()
	Size() int
	Processing() bool
}
