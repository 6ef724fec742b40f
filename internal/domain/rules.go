package domain

import (
	"regexp"
	"time"
)

// AllDayRule controls how all-day events are shown.
type AllDayRule string

const (
	AllDayShow             AllDayRule = "show"
	AllDayShowWithLinkOnly AllDayRule = "show_with_link_only"
	AllDayHide             AllDayRule = "hide"
)

// NonAllDayRule controls how timed events without a meeting link are shown.
type NonAllDayRule string

const (
	NonAllDayShow                    NonAllDayRule = "show"
	NonAllDayShowInactiveWithoutLink NonAllDayRule = "show_inactive_without_link"
	NonAllDayHideWithoutLink         NonAllDayRule = "hide_without_link"
)

// ReplyRule controls how pending or tentative invitations are shown.
type ReplyRule string

const (
	ReplyShow           ReplyRule = "show"
	ReplyShowUnderlined ReplyRule = "show_underlined"
	ReplyShowInactive   ReplyRule = "show_inactive"
	ReplyHide           ReplyRule = "hide"
)

// DeclinedRule controls how declined or cancelled events are shown.
type DeclinedRule string

const (
	DeclinedStrikethrough DeclinedRule = "strikethrough"
	DeclinedShowInactive  DeclinedRule = "show_inactive"
	DeclinedHide          DeclinedRule = "hide"
)

// PersonalRule controls how events with zero attendees are shown.
type PersonalRule string

const (
	PersonalShowActive   PersonalRule = "show_active"
	PersonalShowInactive PersonalRule = "show_inactive"
	PersonalHide         PersonalRule = "hide"
)

// Rules is one immutable snapshot of the user's visibility and timing
// configuration. The scheduler takes a snapshot at the top of each tick
// and passes it down; nothing below ever reads live settings.
type Rules struct {
	// TitleRegexes hides events whose title matches any of the compiled
	// patterns. A pattern that does not match never excludes an event.
	TitleRegexes []*regexp.Regexp

	AllDay    AllDayRule
	NonAllDay NonAllDayRule
	Pending   ReplyRule
	Tentative ReplyRule
	Declined  DeclinedRule
	Personal  PersonalRule

	// ShowTomorrow extends the resolution period to the end of tomorrow.
	ShowTomorrow bool

	// LookAhead is the tie-break window: an event starting within this
	// window pre-empts one already in progress. Defaults to 13 minutes.
	LookAhead time.Duration
}

// DefaultLookAhead is the tie-break window used when none is configured.
const DefaultLookAhead = 13 * time.Minute

// Normalize fills zero values with defaults so a partially configured
// snapshot still behaves.
func (r Rules) Normalize() Rules {
	if r.AllDay == "" {
		r.AllDay = AllDayShow
	}
	if r.NonAllDay == "" {
		r.NonAllDay = NonAllDayShow
	}
	if r.Pending == "" {
		r.Pending = ReplyShow
	}
	if r.Tentative == "" {
		r.Tentative = ReplyShow
	}
	if r.Declined == "" {
		r.Declined = DeclinedStrikethrough
	}
	if r.Personal == "" {
		r.Personal = PersonalShowActive
	}
	if r.LookAhead <= 0 {
		r.LookAhead = DefaultLookAhead
	}
	return r
}
