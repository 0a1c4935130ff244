// Package kernel is a minimal discrete-event kernel: a logical clock and
// an event queue ordered by (time, sequence). Handling is synchronous and
// single-threaded, so a run is deterministic for a given send order.
package kernel

import (
	"container/heap"

	"go.uber.org/zap"
)

// Tag classifies an event for its handler.
type Tag int

// Event is one scheduled message.
type Event struct {
	Time float64
	Tag  Tag
	Data any

	dest Handler
	seq  uint64
}

// Handler receives events at their scheduled time.
type Handler interface {
	HandleEvent(ev Event)
}

// Kernel advances a logical clock by delivering queued events in order.
type Kernel struct {
	now    float64
	seq    uint64
	queue  eventQueue
	logger *zap.Logger
}

// New creates a kernel with the clock at zero.
func New(logger *zap.Logger) *Kernel {
	return &Kernel{logger: logger.With(zap.String("component", "kernel"))}
}

// Clock returns the current logical time.
func (k *Kernel) Clock() float64 {
	return k.now
}

// Send schedules an event for the destination after the given delay.
// Negative delays are clamped to zero (delivery at the current instant,
// after events already queued for it).
func (k *Kernel) Send(dest Handler, delay float64, tag Tag, data any) {
	if delay < 0 {
		delay = 0
	}
	k.seq++
	heap.Push(&k.queue, Event{
		Time: k.now + delay,
		Tag:  tag,
		Data: data,
		dest: dest,
		seq:  k.seq,
	})
}

// Pending returns the number of undelivered events.
func (k *Kernel) Pending() int {
	return k.queue.Len()
}

// Run delivers events until the queue drains and returns the final clock.
func (k *Kernel) Run() float64 {
	for k.queue.Len() > 0 {
		ev := heap.Pop(&k.queue).(Event)
		k.now = ev.Time
		ev.dest.HandleEvent(ev)
	}
	k.logger.Debug("event queue drained", zap.Float64("clock", k.now))
	return k.now
}

// eventQueue is a min-heap on (time, sequence).
type eventQueue []Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].Time != q[j].Time {
		return q[i].Time < q[j].Time
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	*q = old[:n-1]
	return ev
}
