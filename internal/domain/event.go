package domain

import (
	"time"

	"nextup/internal/meeting"
)

// NoTitlePlaceholder is shown for events whose source record has no summary.
const NoTitlePlaceholder = "No title"

// EventStatus is the source-level status of an event.
type EventStatus string

const (
	StatusNone      EventStatus = "none"
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCanceled  EventStatus = "canceled"
)

// ParticipationStatus is the current user's reply to an invitation.
type ParticipationStatus string

const (
	ParticipationUnknown   ParticipationStatus = "unknown"
	ParticipationPending   ParticipationStatus = "pending"
	ParticipationAccepted  ParticipationStatus = "accepted"
	ParticipationDeclined  ParticipationStatus = "declined"
	ParticipationTentative ParticipationStatus = "tentative"
	ParticipationDelegated ParticipationStatus = "delegated"
	ParticipationCompleted ParticipationStatus = "completed"
	ParticipationInProcess ParticipationStatus = "in_process"
)

// Attendee is a single participant on an event.
type Attendee struct {
	Name          string
	Email         string
	Status        ParticipationStatus
	Optional      bool
	IsCurrentUser bool
}

// Raw is the unnormalized record a calendar source yields for one event
// occurrence. NewEvent turns it into an Event.
type Raw struct {
	ID             string
	Title          string
	CalendarTitle  string
	CalendarSource string
	CalendarColor  string
	Start          time.Time
	End            time.Time
	AllDay         bool
	Status         EventStatus
	Attendees      []Attendee
	Location       string
	URL            string
	Notes          string
	LastModified   *time.Time
	Recurrent      bool
}

// Event is an immutable calendar event with derived fields. Instances
// are rebuilt from a fresh source snapshot on every fetch and never
// mutated afterwards.
type Event struct {
	ID                  string
	LastModified        *time.Time
	Title               string
	CalendarTitle       string
	CalendarSource      string
	CalendarColor       string
	Start               time.Time
	End                 time.Time
	AllDay              bool
	Status              EventStatus
	ParticipationStatus ParticipationStatus
	Attendees           []Attendee
	MeetingLink         *meeting.Link
	Notes               string
	Location            string
	URL                 string
	Recurrent           bool
}

// NewEvent constructs an Event from a raw source record. It is
// side-effect-free: missing optional fields degrade to documented
// defaults instead of failing.
//
// Derivations, in order:
//   - empty title becomes NoTitlePlaceholder
//   - a non-all-day event whose start and end both sit exactly on local
//     midnight is reclassified as all-day (sources silently import
//     all-day events as timed ones)
//   - participation status comes from the attendee flagged as the
//     current user, defaulting to unknown
//   - the meeting link is scanned from location, url, notes, then
//     HTML-stripped notes, stopping at the first match
func NewEvent(raw Raw, linkOpts meeting.Options) Event {
	title := raw.Title
	if title == "" {
		title = NoTitlePlaceholder
	}

	allDay := raw.AllDay
	if !allDay && isMidnight(raw.Start) && isMidnight(raw.End) {
		allDay = true
	}

	participation := ParticipationUnknown
	for _, a := range raw.Attendees {
		if a.IsCurrentUser {
			participation = a.Status
			break
		}
	}

	link := meeting.Detect([]string{
		raw.Location,
		raw.URL,
		raw.Notes,
		meeting.StripHTML(raw.Notes),
	}, linkOpts)

	return Event{
		ID:                  raw.ID,
		LastModified:        raw.LastModified,
		Title:               title,
		CalendarTitle:       raw.CalendarTitle,
		CalendarSource:      raw.CalendarSource,
		CalendarColor:       raw.CalendarColor,
		Start:               raw.Start,
		End:                 raw.End,
		AllDay:              allDay,
		Status:              raw.Status,
		ParticipationStatus: participation,
		Attendees:           raw.Attendees,
		MeetingLink:         link,
		Notes:               raw.Notes,
		Location:            raw.Location,
		URL:                 raw.URL,
		Recurrent:           raw.Recurrent,
	}
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// InProgress reports whether the event spans now.
func (e Event) InProgress(now time.Time) bool {
	return !e.Start.After(now) && e.End.After(now)
}

// LeadTime returns how far in the future the event starts. Negative for
// events already started.
func (e Event) LeadTime(now time.Time) time.Duration {
	return e.Start.Sub(now)
}

// HasLink reports whether a meeting link was derived for the event.
func (e Event) HasLink() bool {
	return e.MeetingLink != nil
}

// Personal reports whether the event has no attendees at all.
func (e Event) Personal() bool {
	return len(e.Attendees) == 0
}
