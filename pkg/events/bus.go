// Package events is the Job Manager's per-audit progress event bus
// (spec §4.7): "an in-memory channel of ProgressEvent with buffer size
// 64. Slow subscribers drop oldest events (ring-buffer semantics) and
// receive a dropped=N marker on next delivery. A heartbeat
// ProgressEvent is emitted every 30s for subscribed, still-running
// audits... Subscriptions auto-expire after 10 minutes."
//
// Grounded on teacher's pkg/events/manager.go ConnectionManager: a
// mutex-protected registry mapping a topic (there, a Postgres NOTIFY
// channel name; here, an audit id) to its subscriber set, with a
// Broadcast method that fans one payload out to every subscriber.
// Adapted from WebSocket connections to bare Go channels, since spec
// §9's Non-goals rule out the multi-pod broadcast teacher's
// coder/websocket + LISTEN/NOTIFY design exists to serve (see
// DESIGN.md "Dropped teacher dependencies").
package events

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

// Bus fans ProgressEvents out to per-audit subscribers, assigns the
// strictly-increasing per-audit sequence number (spec §5 "Ordering
// guarantees"), and drives the heartbeat/TTL background behavior.
type Bus struct {
	bufferSize        int
	heartbeatInterval time.Duration
	subscriptionTTL   time.Duration

	mu     sync.Mutex
	topics map[int64]*topic

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Bus. bufferSize, heartbeatInterval and
// subscriptionTTL come from config.EventsConfig (spec §6 defaults: 64,
// 30s, 10m).
func New(bufferSize int, heartbeatInterval, subscriptionTTL time.Duration) *Bus {
	if bufferSize < 1 {
		bufferSize = 64
	}
	b := &Bus{
		bufferSize:        bufferSize,
		heartbeatInterval: heartbeatInterval,
		subscriptionTTL:   subscriptionTTL,
		topics:            make(map[int64]*topic),
		stopCh:            make(chan struct{}),
	}
	if heartbeatInterval > 0 {
		b.wg.Add(1)
		go b.runHeartbeats()
	}
	return b
}

// topic holds the subscriber set and sequence counter for one audit.
type topic struct {
	mu        sync.Mutex
	seq       uint64
	running   bool
	lastStage string
	subs      map[string]*subscription
}

// subscription is one client's view of a topic.
type subscription struct {
	id      string
	ch      chan models.ProgressEvent
	dropped uint64
	mu      sync.Mutex
	expiry  *time.Timer
}

// Publish dispatches e to every current subscriber of e.AuditID,
// assigning Seq and Timestamp if unset. It never blocks on a slow
// subscriber: a full subscriber channel drops its oldest buffered
// event and the next delivered event to that subscriber carries the
// cumulative Dropped count (spec §4.7, §5, §8).
func (b *Bus) Publish(e models.ProgressEvent) {
	t := b.topicFor(e.AuditID)

	t.mu.Lock()
	t.seq++
	e.Seq = t.seq
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Stage != "" {
		t.lastStage = e.Stage
	}
	switch e.Status {
	case models.StatusRunning:
		t.running = true
	case models.StatusCompleted, models.StatusFailed:
		t.running = false
	}
	subs := make([]*subscription, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.deliver(e)
	}
}

// Subscribe registers a new subscriber for auditID and returns its
// event channel plus a cancel function that unsubscribes immediately.
// The subscription auto-expires after the Bus's configured TTL even if
// cancel is never called (spec §4.7 "prevents leaks from abandoned
// long-lived connections").
func (b *Bus) Subscribe(auditID int64) (<-chan models.ProgressEvent, func()) {
	t := b.topicFor(auditID)

	sub := &subscription{
		id: newSubID(),
		ch: make(chan models.ProgressEvent, b.bufferSize),
	}

	t.mu.Lock()
	t.subs[sub.id] = sub
	t.mu.Unlock()

	cancel := func() { b.unsubscribe(auditID, sub.id) }

	if b.subscriptionTTL > 0 {
		sub.expiry = time.AfterFunc(b.subscriptionTTL, cancel)
	}

	return sub.ch, cancel
}

func (b *Bus) unsubscribe(auditID int64, subID string) {
	b.mu.Lock()
	t, ok := b.topics[auditID]
	if !ok {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	t.mu.Lock()
	sub, ok := t.subs[subID]
	if ok {
		delete(t.subs, subID)
	}
	empty := len(t.subs) == 0 && !t.running
	t.mu.Unlock()

	if ok {
		if sub.expiry != nil {
			sub.expiry.Stop()
		}
		close(sub.ch)
	}

	if empty {
		b.mu.Lock()
		if cur, ok := b.topics[auditID]; ok && cur == t {
			delete(b.topics, auditID)
		}
		b.mu.Unlock()
	}
}

func (b *Bus) topicFor(auditID int64) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[auditID]
	if !ok {
		t = &topic{subs: make(map[string]*subscription)}
		b.topics[auditID] = t
	}
	return t
}

// runHeartbeats emits a heartbeat ProgressEvent every heartbeatInterval
// to every subscriber of every audit currently marked running (spec
// §4.7, §6).
func (b *Bus) runHeartbeats() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.tickHeartbeats()
		}
	}
}

func (b *Bus) tickHeartbeats() {
	b.mu.Lock()
	topics := make(map[int64]*topic, len(b.topics))
	for id, t := range b.topics {
		topics[id] = t
	}
	b.mu.Unlock()

	for auditID, t := range topics {
		t.mu.Lock()
		running := t.running
		stage := t.lastStage
		t.mu.Unlock()
		if !running {
			continue
		}
		b.Publish(models.ProgressEvent{
			AuditID:   auditID,
			Stage:     stage,
			Heartbeat: true,
		})
	}
}

// Shutdown stops the heartbeat loop and closes every subscriber
// channel (spec §4.7 "Graceful shutdown... then close all event
// channels").
func (b *Bus) Shutdown() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()

	b.mu.Lock()
	topics := b.topics
	b.topics = make(map[int64]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.mu.Lock()
		subs := t.subs
		t.subs = nil
		t.mu.Unlock()
		for _, s := range subs {
			if s.expiry != nil {
				s.expiry.Stop()
			}
			close(s.ch)
		}
	}
}

// deliver sends e to s, applying ring-buffer drop-oldest semantics
// when s's channel is full (spec §4.7). If the drain-and-resend still
// loses the race to a concurrent publish, the dropped count already
// attached to e is not lost: it is restored (plus one, for e itself)
// rather than being reset back to a fresh 1, so the cumulative Dropped
// marker the next successful delivery carries stays accurate.
func (s *subscription) deliver(e models.ProgressEvent) {
	s.mu.Lock()
	pending := s.dropped
	s.dropped = 0
	s.mu.Unlock()

	if pending > 0 {
		e.Dropped = pending
	}

	select {
	case s.ch <- e:
		return
	default:
	}

	select {
	case old := <-s.ch:
		pending += 1 + old.Dropped
		e.Dropped = pending
	default:
	}

	select {
	case s.ch <- e:
	default:
		s.mu.Lock()
		s.dropped += pending + 1
		s.mu.Unlock()
	}
}

var subIDCounter uint64

// newSubID generates a process-unique subscriber id without relying on
// a random source (keeps the package dependency-free).
func newSubID() string {
	return strconv.FormatUint(atomic.AddUint64(&subIDCounter, 1), 10)
}
