// Package session implements the per-connection worker: the
// AwaitingHello → AwaitingAuth → Ready → Closing state machine, the
// permission-gated inbound mutation path, and the bounded outbound packet
// queue the tick loop feeds.
package session

import (
	"sync"

	"cyberspace/apperr"
	"cyberspace/wire"
	"cyberspace/world"
)

// OutboundQueue is a bounded per-session FIFO of framed packets. Under
// backpressure the oldest non-critical (transform-update) packet is dropped
// to make room; critical packets (create, destroy, full update, time sync)
// are never dropped. If accepting a critical packet would push the queue
// past maxCritical, the queue marks itself overloaded and the caller must
// terminate the session.
type OutboundQueue struct {
	mu         sync.Mutex
	items      []world.Packet
	maxLen     int
	maxCritical int
	criticalCount int
	closed     bool
	overloaded bool
	cond       *sync.Cond
}

func NewOutboundQueue(maxLen, maxCritical int) *OutboundQueue {
	q := &OutboundQueue{maxLen: maxLen, maxCritical: maxCritical}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a packet, applying the critical/non-critical drop policy.
// It returns apperr.Overloaded if the critical backlog bound is exceeded —
// the caller must close the session in that case.
func (q *OutboundQueue) Push(pkt world.Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}

	critical := wire.IsCriticalKind(pkt.Kind)
	if critical {
		q.criticalCount++
		if q.criticalCount > q.maxCritical {
			q.overloaded = true
			q.cond.Broadcast()
			return apperr.New(apperr.Overloaded, "critical outbound backlog exceeded")
		}
		q.items = append(q.items, pkt)
		q.cond.Broadcast()
		return nil
	}

	if len(q.items) >= q.maxLen {
		if idx := q.oldestNonCriticalIndex(); idx >= 0 {
			q.items = append(q.items[:idx], q.items[idx+1:]...)
		} else {
			// Queue is saturated entirely with critical packets; drop this
			// non-critical packet rather than grow unbounded.
			return nil
		}
	}
	q.items = append(q.items, pkt)
	q.cond.Broadcast()
	return nil
}

func (q *OutboundQueue) oldestNonCriticalIndex() int {
	for i, it := range q.items {
		if !wire.IsCriticalKind(it.Kind) {
			return i
		}
	}
	return -1
}

// DrainBlocking waits for at least one packet (or close) and returns every
// queued packet, in FIFO order, clearing the queue.
func (q *OutboundQueue) DrainBlocking() ([]world.Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 && q.closed {
		return nil, false
	}
	out := q.items
	q.items = nil
	for _, p := range out {
		if wire.IsCriticalKind(p.Kind) {
			q.criticalCount--
		}
	}
	return out, true
}

func (q *OutboundQueue) IsOverloaded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overloaded
}

func (q *OutboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
