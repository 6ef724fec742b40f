package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nextup/internal/domain"
	"nextup/internal/meeting"
	"nextup/internal/storage"
)

// Source yields raw event records for a time window. Implementations
// wrap the CalDAV and ICS feed clients.
type Source interface {
	FetchEvents(ctx context.Context, from, to time.Time) ([]domain.Raw, error)
}

// SourceFunc adapts a closure to the Source interface.
type SourceFunc func(ctx context.Context, from, to time.Time) ([]domain.Raw, error)

func (f SourceFunc) FetchEvents(ctx context.Context, from, to time.Time) ([]domain.Raw, error) {
	return f(ctx, from, to)
}

// Snapshot is one frozen view of the normalized event collection. A
// scheduler tick runs entirely against a single snapshot; refreshes
// become visible to the next tick, never mid-tick.
type Snapshot struct {
	Events    []domain.Event
	FetchedAt time.Time
}

// EventService owns the event snapshot: it fetches raw records from all
// sources, constructs immutable domain events and publishes the result
// atomically. It also fronts the dismissal ledger for UI badges.
type EventService struct {
	sources  []Source
	storage  *storage.Storage
	linkOpts meeting.Options

	mu   sync.RWMutex
	snap Snapshot
}

func NewEventService(sources []Source, store *storage.Storage, linkOpts meeting.Options) *EventService {
	return &EventService{
		sources:  sources,
		storage:  store,
		linkOpts: linkOpts,
	}
}

// Refresh rebuilds the snapshot from a fresh fetch of every source.
// The window spans from the start of today through the day after
// tomorrow, which covers both display periods. A source failure is
// returned for logging but never discards what other sources yielded;
// if everything failed the previous snapshot stays in place so one bad
// poll does not blank the display.
func (s *EventService) Refresh(ctx context.Context) error {
	now := time.Now()
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 2)

	var (
		raws    []domain.Raw
		lastErr error
		fetched bool
	)
	for _, src := range s.sources {
		rs, err := src.FetchEvents(ctx, from, to)
		if err != nil {
			lastErr = err
			if rs == nil {
				continue
			}
		}
		fetched = true
		raws = append(raws, rs...)
	}

	if !fetched && lastErr != nil {
		return fmt.Errorf("all sources failed: %w", lastErr)
	}

	events := make([]domain.Event, 0, len(raws))
	for _, raw := range raws {
		events = append(events, domain.NewEvent(raw, s.linkOpts))
	}
	SortByStart(events)

	s.mu.Lock()
	s.snap = Snapshot{Events: events, FetchedAt: now}
	s.mu.Unlock()

	return lastErr
}

// Snapshot returns the current frozen event collection.
func (s *EventService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.Event, len(s.snap.Events))
	copy(events, s.snap.Events)
	return Snapshot{Events: events, FetchedAt: s.snap.FetchedAt}
}

// DisplayList returns the ordered, styled list for menu rendering.
func (s *EventService) DisplayList(rules domain.Rules) []DisplayItem {
	return DisplayList(s.Snapshot().Events, rules)
}

// NextEvent resolves the current/next event for status-bar rendering.
func (s *EventService) NextEvent(rules domain.Rules, now time.Time) *domain.Event {
	return ResolveNext(s.Snapshot().Events, rules, now, ResolveOptions{})
}

// Dismiss marks the event as dismissed in its ledger. The marker
// expires with the event on the next reap.
func (s *EventService) Dismiss(e domain.Event) error {
	return s.storage.MarkProcessed(domain.ActionDismissed, e)
}

// Undismiss removes the dismissal marker.
func (s *EventService) Undismiss(e domain.Event) error {
	return s.storage.ClearProcessed(domain.ActionDismissed, e.ID)
}

// Dismissed lists the live dismissal markers for UI badges.
func (s *EventService) Dismissed() ([]domain.ProcessedEvent, error) {
	return s.storage.ListProcessed(domain.ActionDismissed)
}
