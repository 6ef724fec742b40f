package service

import (
	"time"

	"nextup/internal/domain"
)

// startGrace keeps an event that starts within the current minute from
// flapping in and out of the resolution window.
const startGrace = time.Minute

// ResolveOptions selects the candidate pool variant.
type ResolveOptions struct {
	// AllowAllDayInProgress admits an all-day event while now falls
	// inside its span. The auto-join and script actions use this; the
	// status bar does not.
	AllowAllDayInProgress bool
}

// ResolveNext picks the single current/next event from the collection,
// or nil. Events need not be pre-sorted; the scan orders them first.
//
// The look-ahead tie-break: the first surviving event is the candidate,
// but a later event starting within rules.LookAhead of now replaces it.
// An in-progress meeting with significant time left therefore does not
// suppress one about to start.
func ResolveNext(events []domain.Event, rules domain.Rules, now time.Time, opts ResolveOptions) *domain.Event {
	startPeriod := now.Add(startGrace)
	endPeriod := endOfDay(now)
	if rules.ShowTomorrow {
		endPeriod = endOfDay(now.AddDate(0, 0, 1))
	}

	ordered := make([]domain.Event, len(events))
	copy(ordered, events)
	SortByStart(ordered)

	var candidate *domain.Event
	for i := range ordered {
		e := ordered[i]

		if !e.End.After(startPeriod) || !e.Start.Before(endPeriod) {
			continue
		}
		if !survives(e, rules, now, opts) {
			continue
		}

		if candidate == nil {
			candidate = &ordered[i]
			continue
		}
		if e.Start.Before(now.Add(rules.LookAhead)) {
			candidate = &ordered[i]
			continue
		}
		// Ordered by start: nothing later can fall inside the window.
		break
	}

	return candidate
}

// survives applies the candidate-pool subset of the visibility rules.
func survives(e domain.Event, rules domain.Rules, now time.Time, opts ResolveOptions) bool {
	if titleMatchesAny(e.Title, rules) {
		return false
	}
	if e.Personal() && rules.Personal != domain.PersonalShowActive {
		return false
	}
	// Status checks come before the all-day branch: a declined or
	// cancelled event never qualifies, in progress or not.
	if e.ParticipationStatus == domain.ParticipationDeclined {
		return false
	}
	if e.Status == domain.StatusCanceled {
		return false
	}
	if e.ParticipationStatus == domain.ParticipationPending &&
		(rules.Pending == domain.ReplyHide || rules.Pending == domain.ReplyShowInactive) {
		return false
	}
	if e.ParticipationStatus == domain.ParticipationTentative &&
		(rules.Tentative == domain.ReplyHide || rules.Tentative == domain.ReplyShowInactive) {
		return false
	}
	if e.AllDay {
		return opts.AllowAllDayInProgress && e.InProgress(now)
	}
	if rules.NonAllDay == domain.NonAllDayHideWithoutLink && !e.HasLink() {
		return false
	}
	return true
}

// endOfDay returns the upcoming midnight after t, in t's location.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
