package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fingerprint identifies a request's content for duplicate detection.
func Fingerprint(requesterID, text string) string {
	return requesterID + ":" + strings.ToLower(strings.TrimSpace(text))
}

// ComputePriority scores a request that did not bring its own priority.
func ComputePriority(req datastructures.Request, w PriorityWeights) int {
	p := req.TeamLevel * w.Level
	if req.IsSubscriber {
		p += w.Subscriber
	}
	switch req.Source {
	case datastructures.SourceManual:
		p += w.Manual
	case datastructures.SourceGift:
		p += w.Gift
	}
	return p
}

// Enqueue runs a request through duplicate, rate limit and capacity checks and queues it.
// Rejections are reported in the result, never as a panic or error.
func (s *Scheduler) Enqueue(req datastructures.Request) (res datastructures.AdmissionResult) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	defer func() {
		if err := recover(); err != nil {
			s.stats.DroppedError++
			s.log.WithField("err", err).Error("panic during admission")
			res = reject(datastructures.RejectError, fmt.Sprint(err))
		}
	}()

	if strings.TrimSpace(req.RequesterID) == "" {
		s.stats.DroppedError++
		return reject(datastructures.RejectError, "missing requester id")
	}
	if strings.TrimSpace(req.Text) == "" {
		s.stats.DroppedError++
		return reject(datastructures.RejectError, "empty text")
	}

	now := s.now()
	log := s.log.WithField("requester", req.RequesterID)

	fingerprint := ""
	if !req.SkipDedup {
		fingerprint = Fingerprint(req.RequesterID, req.Text)
		s.expireFingerprintsLocked(now)
		if first, ok := s.fingerprints.Peek(fingerprint); ok && now.Sub(first) < s.cfg.DedupWindow {
			s.stats.DroppedDuplicate++
			log.Debug("rejected duplicate request")
			return reject(datastructures.RejectDuplicate, fmt.Sprintf("same message was sent %s ago", now.Sub(first).Round(time.Second)))
		}
		s.fingerprints.Add(fingerprint, now)
	}

	if retryAfter, limited := s.checkRateLimitLocked(req.RequesterID, now); limited {
		s.releaseFingerprintLocked(fingerprint, now)
		s.stats.DroppedRateLimit++
		log.WithField("retry_after", retryAfter).Debug("rejected rate limited request")
		res := reject(datastructures.RejectRateLimit, fmt.Sprintf("limit of %d requests per %s reached", s.cfg.RateLimit, s.cfg.RateWindow))
		res.RetryAfter = retryAfter
		return res
	}

	if s.queue.Len() >= s.cfg.MaxQueueSize {
		s.releaseFingerprintLocked(fingerprint, now)
		s.stats.DroppedCapacity++
		log.Debug("rejected request, queue full")
		return reject(datastructures.RejectQueueFull, fmt.Sprintf("queue holds %d items", s.cfg.MaxQueueSize))
	}

	item := &datastructures.QueueItem{
		ID:               primitive.NewObjectIDFromTimestamp(now).Hex(),
		EnqueuedAt:       now,
		RequesterID:      req.RequesterID,
		DisplayName:      req.DisplayName,
		Text:             req.Text,
		Voice:            req.Voice,
		Engine:           req.Engine,
		Options:          copyOptions(req.Options),
		Source:           req.Source,
		TeamLevel:        req.TeamLevel,
		IsSubscriber:     req.IsSubscriber,
		SkipDedup:        req.SkipDedup,
		HasAssignedVoice: req.HasAssignedVoice,
		AudioData:        req.AudioData,
		IsStreaming:      req.IsStreaming,
	}
	if req.Priority != nil {
		item.Priority = *req.Priority
	} else {
		item.Priority = ComputePriority(req, s.cfg.Weights)
	}

	s.seq++
	e := &entry{item: item, seq: s.seq}
	s.queue.insert(e)

	if s.cfg.RateLimit > 0 {
		stamps, _ := s.ledger.Peek(req.RequesterID)
		s.ledger.Add(req.RequesterID, append(stamps, now))
	}

	s.stats.Admitted++
	s.notify()

	position := s.queue.position(e)
	log.WithField("id", item.ID).WithField("priority", item.Priority).WithField("position", position).Debug("admitted request")

	return datastructures.AdmissionResult{
		Accepted:      true,
		ID:            item.ID,
		Position:      position,
		EstimatedWait: time.Duration(position) * s.cfg.AvgItemDuration,
	}
}

func reject(reason datastructures.RejectReason, detail string) datastructures.AdmissionResult {
	return datastructures.AdmissionResult{Reason: reason, Detail: detail}
}

// expireFingerprintsLocked drops fingerprints from the oldest end until a live one is found.
// Entries are only ever added with the current time, so cache order is time order.
func (s *Scheduler) expireFingerprintsLocked(now time.Time) {
	for {
		key, first, ok := s.fingerprints.GetOldest()
		if !ok || now.Sub(first) < s.cfg.DedupWindow {
			return
		}
		s.fingerprints.Remove(key)
	}
}

// releaseFingerprintLocked forgets a fingerprint recorded by a request that was rejected later on.
func (s *Scheduler) releaseFingerprintLocked(fingerprint string, now time.Time) {
	if fingerprint == "" {
		return
	}
	if first, ok := s.fingerprints.Peek(fingerprint); ok && first.Equal(now) {
		s.fingerprints.Remove(fingerprint)
	}
}

// checkRateLimitLocked prunes the requester's window and reports whether it is exhausted.
func (s *Scheduler) checkRateLimitLocked(requesterID string, now time.Time) (time.Duration, bool) {
	if s.cfg.RateLimit <= 0 {
		return 0, false
	}

	stamps, ok := s.ledger.Peek(requesterID)
	if !ok {
		return 0, false
	}

	cutOff := now.Add(-s.cfg.RateWindow)
	live := stamps[:0]
	for _, t := range stamps {
		if t.After(cutOff) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		s.ledger.Remove(requesterID)
		return 0, false
	}
	s.ledger.Add(requesterID, live)

	if len(live) < s.cfg.RateLimit {
		return 0, false
	}

	retryAfter := live[0].Add(s.cfg.RateWindow).Sub(now)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return retryAfter, true
}

func copyOptions(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
