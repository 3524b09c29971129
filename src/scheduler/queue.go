package scheduler

import (
	"container/heap"
	"sort"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
)

// entry wraps a queued item with its admission sequence and heap position.
type entry struct {
	item  *datastructures.QueueItem
	seq   uint64
	index int
}

func before(a, b *entry) bool {
	if a.item.Priority != b.item.Priority {
		return a.item.Priority > b.item.Priority
	}
	return a.seq < b.seq
}

// itemQueue is a max-heap on priority with FIFO order inside a priority band.
type itemQueue struct {
	entries []*entry
	byID    map[string]*entry
}

func newItemQueue() *itemQueue {
	return &itemQueue{byID: map[string]*entry{}}
}

func (q *itemQueue) Len() int { return len(q.entries) }

func (q *itemQueue) Less(i, j int) bool { return before(q.entries[i], q.entries[j]) }

func (q *itemQueue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	q.entries[i].index = i
	q.entries[j].index = j
}

// Push is for container/heap only.
func (q *itemQueue) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(q.entries)
	q.entries = append(q.entries, e)
}

// Pop is for container/heap only.
func (q *itemQueue) Pop() interface{} {
	old := q.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	q.entries = old[:n-1]
	return e
}

func (q *itemQueue) insert(e *entry) {
	heap.Push(q, e)
	q.byID[e.item.ID] = e
}

func (q *itemQueue) removeHead() *entry {
	if len(q.entries) == 0 {
		return nil
	}
	e := heap.Pop(q).(*entry)
	delete(q.byID, e.item.ID)
	return e
}

func (q *itemQueue) removeByID(id string) *entry {
	e, ok := q.byID[id]
	if !ok {
		return nil
	}
	heap.Remove(q, e.index)
	delete(q.byID, id)
	return e
}

func (q *itemQueue) lookup(id string) (*entry, bool) {
	e, ok := q.byID[id]
	return e, ok
}

func (q *itemQueue) setPriority(id string, priority int) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	e.item.Priority = priority
	heap.Fix(q, e.index)
	return true
}

// ordered returns the entries in dequeue order without touching the heap.
func (q *itemQueue) ordered() []*entry {
	out := make([]*entry, len(q.entries))
	copy(out, q.entries)
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}

// position is the 1-based dequeue position of e.
func (q *itemQueue) position(e *entry) int {
	pos := 1
	for _, o := range q.entries {
		if o != e && before(o, e) {
			pos++
		}
	}
	return pos
}

func (q *itemQueue) clear() int {
	n := len(q.entries)
	for _, e := range q.entries {
		e.index = -1
	}
	q.entries = nil
	q.byID = map[string]*entry{}
	return n
}
