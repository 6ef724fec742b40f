package domain

import "time"

// ActionType names a time-triggered action with its own dedup ledger.
type ActionType string

const (
	ActionAutoJoin         ActionType = "auto_join"
	ActionStartScript      ActionType = "start_script"
	ActionJoinNotification ActionType = "join_notification"
	ActionDismissed        ActionType = "dismissed"
)

// ProcessedEvent is one ledger record: the action already fired for
// this (id, lastModified) pair. EventEnd bounds the record's lifetime;
// reap removes it once the event is over.
type ProcessedEvent struct {
	ID           string
	LastModified *time.Time
	EventEnd     time.Time
}

// Matches reports whether the record covers the given event revision.
// Both the id and the last-modified timestamp must agree: an edited or
// rescheduled event gets a new timestamp and deserves a fresh fire.
func (p ProcessedEvent) Matches(e Event) bool {
	if p.ID != e.ID {
		return false
	}
	if p.LastModified == nil || e.LastModified == nil {
		return p.LastModified == nil && e.LastModified == nil
	}
	return p.LastModified.Equal(*e.LastModified)
}
