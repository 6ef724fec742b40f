// Package notify computes reminder fire times and owns the pending
// notification timers, with cancel-on-reschedule semantics.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"nextup/internal/domain"
)

// MinFireDelay is the threshold under which a notification is treated
// as already missed and never scheduled.
const MinFireDelay = 500 * time.Millisecond

// Sink delivers notifications to the user.
type Sink interface {
	Send(title, body string) error
}

// FireDelay returns how long to wait before alerting for an event,
// given the configured lead offset. Callers must suppress scheduling
// when the result is below MinFireDelay: a notification that would fire
// immediately or in the past is considered missed, not an error.
func FireDelay(e domain.Event, offset time.Duration, now time.Time) time.Duration {
	return e.Start.Sub(now) - offset
}

// pending is one scheduled, not-yet-fired notification.
type pending struct {
	timer   *time.Timer
	eventID string
}

// Manager schedules notifications against a Sink and cancels every
// pending one when the resolved next event changes, so a stale alert
// never references an event that is no longer next.
type Manager struct {
	sink Sink

	mu      sync.Mutex
	pending map[uuid.UUID]pending
}

func NewManager(sink Sink) *Manager {
	return &Manager{
		sink:    sink,
		pending: make(map[uuid.UUID]pending),
	}
}

// Schedule arms a notification after the given delay. Returns false
// without scheduling when the delay is below MinFireDelay.
func (m *Manager) Schedule(e domain.Event, title, body string, delay time.Duration) bool {
	if delay < MinFireDelay {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	m.pending[id] = pending{
		eventID: e.ID,
		timer: time.AfterFunc(delay, func() {
			m.fire(id, title, body)
		}),
	}
	return true
}

func (m *Manager) fire(id uuid.UUID, title, body string) {
	m.mu.Lock()
	_, live := m.pending[id]
	delete(m.pending, id)
	m.mu.Unlock()

	// A timer that raced with CancelAll stays silent.
	if !live {
		return
	}
	if err := m.sink.Send(title, body); err != nil {
		log.Printf("Error sending notification: %v", err)
	}
}

// CancelAll stops every pending notification. Called whenever the next
// event or a display-affecting setting changes.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.pending {
		p.timer.Stop()
		delete(m.pending, id)
	}
}

// PendingFor reports whether a notification is still pending for the
// given event id.
func (m *Manager) PendingFor(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pending {
		if p.eventID == eventID {
			return true
		}
	}
	return false
}
