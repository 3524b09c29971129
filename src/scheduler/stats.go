package scheduler

import (
	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
)

func (s *Scheduler) Stats() datastructures.Stats {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stats := s.stats
	if total := stats.PreGenHits + stats.PreGenMisses; total > 0 {
		stats.PreGenHitRate = float64(stats.PreGenHits) / float64(total)
	}
	return stats
}

func (s *Scheduler) ResetStats() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.stats = datastructures.Stats{}
}

// Info is a snapshot of the queue for the api and the overlay dashboard.
func (s *Scheduler) Info() datastructures.QueueInfo {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	info := datastructures.QueueInfo{
		Size:       s.queue.Len(),
		Processing: s.processing,
		Next:       []datastructures.ItemSummary{},
	}
	if s.current != nil {
		current := s.summaryLocked(s.current)
		info.Current = &current
	}

	for i, e := range s.queue.ordered() {
		if i >= s.cfg.InfoLimit {
			break
		}
		info.Next = append(info.Next, s.summaryLocked(e.item))
	}

	return info
}

func (s *Scheduler) summaryLocked(item *datastructures.QueueItem) datastructures.ItemSummary {
	_, inProgress := s.inFlight[item.ID]
	return datastructures.ItemSummary{
		ID:               item.ID,
		RequesterID:      item.RequesterID,
		DisplayName:      item.DisplayName,
		Text:             item.Text,
		Voice:            item.Voice,
		Source:           item.Source,
		Priority:         item.Priority,
		EnqueuedAt:       item.EnqueuedAt,
		AudioReady:       item.HasAudio(),
		PreGenInProgress: inProgress,
	}
}
