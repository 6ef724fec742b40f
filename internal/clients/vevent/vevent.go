// Package vevent maps iCalendar VEVENT components onto raw domain
// records. Both calendar clients (CalDAV and ICS feed) share this
// mapper so the two sources normalize events identically.
package vevent

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"nextup/internal/domain"
)

const maxOccurrencesPerEvent = 1000

// Source carries the per-calendar context stamped onto every record.
type Source struct {
	CalendarTitle  string
	CalendarSource string
	CalendarColor  string
	// AccountEmail identifies the current user among the attendees.
	AccountEmail string
}

// Events extracts all event occurrences from a parsed calendar that
// intersect [from, to). Recurring events are expanded into concrete
// occurrences; RECURRENCE-ID overrides replace the base occurrence they
// shadow. A component that fails to parse is skipped, never fatal.
func Events(cal *ical.Calendar, src Source, from, to time.Time) []domain.Raw {
	var out []domain.Raw

	// Overridden occurrence starts per UID, so base expansion can skip
	// the slots the overrides replace.
	overridden := make(map[string][]time.Time)
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		ridProp := comp.Props.Get(ical.PropRecurrenceID)
		if ridProp == nil {
			continue
		}
		rid, err := ridProp.DateTime(time.Local)
		if err != nil {
			continue
		}
		uid := propValue(comp, ical.PropUID)
		overridden[uid] = append(overridden[uid], rid)
	}

	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		base, ok := parseComponent(comp, src)
		if !ok {
			continue
		}

		if comp.Props.Get(ical.PropRecurrenceID) != nil {
			// Override: a single detached occurrence.
			base.Recurrent = true
			base.ID = occurrenceID(base.ID, base.Start)
			if overlaps(base.Start, base.End, from, to) {
				out = append(out, base)
			}
			continue
		}

		rruleProp := comp.Props.Get(ical.PropRecurrenceRule)
		if rruleProp == nil {
			if overlaps(base.Start, base.End, from, to) {
				out = append(out, base)
			}
			continue
		}

		out = append(out, expand(comp, base, rruleProp.Value, overridden[base.ID], from, to)...)
	}

	return out
}

// expand turns one recurring base event into concrete occurrences
// inside the window, honoring EXDATE and skipping overridden slots.
func expand(comp *ical.Component, base domain.Raw, rawRule string, overridden []time.Time, from, to time.Time) []domain.Raw {
	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil
	}
	r.DTStart(base.Start)

	var set rrule.Set
	set.RRule(r)
	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		ex, err := prop.DateTime(base.Start.Location())
		if err != nil {
			continue
		}
		set.ExDate(ex.In(base.Start.Location()))
	}

	duration := base.End.Sub(base.Start)
	starts := set.Between(from.In(base.Start.Location()), to.In(base.Start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]domain.Raw, 0, len(starts))
	for _, start := range starts {
		if isOverridden(overridden, start) {
			continue
		}
		occ := base
		occ.Recurrent = true
		occ.Start = start
		occ.End = start.Add(duration)
		occ.ID = occurrenceID(base.ID, start)
		out = append(out, occ)
	}
	return out
}

// occurrenceID derives a stable per-occurrence identifier. A bare UID
// is shared by every occurrence of a recurring event, which would make
// the ledger treat them all as one.
func occurrenceID(uid string, start time.Time) string {
	return uid + "/" + start.UTC().Format(time.RFC3339)
}

func isOverridden(overridden []time.Time, start time.Time) bool {
	for _, t := range overridden {
		if t.Equal(start) {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aEnd.After(bStart) && aStart.Before(bEnd)
}

// parseComponent maps one VEVENT onto a raw record. Returns false when
// the component has no usable start time.
func parseComponent(comp *ical.Component, src Source) (domain.Raw, bool) {
	raw := domain.Raw{
		ID:             propValue(comp, ical.PropUID),
		Title:          propValue(comp, ical.PropSummary),
		Notes:          propValue(comp, ical.PropDescription),
		Location:       propValue(comp, ical.PropLocation),
		URL:            propValue(comp, ical.PropURL),
		CalendarTitle:  src.CalendarTitle,
		CalendarSource: src.CalendarSource,
		CalendarColor:  src.CalendarColor,
		Status:         parseStatus(propValue(comp, ical.PropStatus)),
	}

	if colorProp := comp.Props.Get(ical.PropColor); colorProp != nil {
		raw.CalendarColor = colorProp.Value
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return raw, false
	}
	start, err := startProp.DateTime(time.Local)
	if err != nil {
		return raw, false
	}
	raw.Start = start
	if startProp.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
		raw.AllDay = true
	}

	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		if end, err := endProp.DateTime(time.Local); err == nil {
			raw.End = end
		}
	}
	if raw.End.IsZero() {
		// Sources may omit DTEND; fall back to a bounded span.
		if raw.AllDay {
			raw.End = raw.Start.Add(24 * time.Hour)
		} else {
			raw.End = raw.Start.Add(time.Hour)
		}
	}

	if lmProp := comp.Props.Get(ical.PropLastModified); lmProp != nil {
		if lm, err := lmProp.DateTime(time.UTC); err == nil {
			raw.LastModified = &lm
		}
	}

	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		raw.Attendees = append(raw.Attendees, parseAttendee(prop, src.AccountEmail))
	}

	return raw, true
}

func parseAttendee(prop ical.Prop, accountEmail string) domain.Attendee {
	email := strings.ToLower(strings.TrimPrefix(strings.ToLower(prop.Value), "mailto:"))
	return domain.Attendee{
		Name:          prop.Params.Get(ical.ParamCommonName),
		Email:         email,
		Status:        parsePartStat(prop.Params.Get(ical.ParamParticipationStatus)),
		Optional:      strings.EqualFold(prop.Params.Get(ical.ParamRole), "OPT-PARTICIPANT"),
		IsCurrentUser: email != "" && strings.EqualFold(email, accountEmail),
	}
}

func parsePartStat(v string) domain.ParticipationStatus {
	switch strings.ToUpper(v) {
	case "NEEDS-ACTION":
		return domain.ParticipationPending
	case "ACCEPTED":
		return domain.ParticipationAccepted
	case "DECLINED":
		return domain.ParticipationDeclined
	case "TENTATIVE":
		return domain.ParticipationTentative
	case "DELEGATED":
		return domain.ParticipationDelegated
	case "COMPLETED":
		return domain.ParticipationCompleted
	case "IN-PROCESS":
		return domain.ParticipationInProcess
	default:
		return domain.ParticipationUnknown
	}
}

func parseStatus(v string) domain.EventStatus {
	switch strings.ToUpper(v) {
	case "CONFIRMED":
		return domain.StatusConfirmed
	case "TENTATIVE":
		return domain.StatusTentative
	case "CANCELLED":
		return domain.StatusCanceled
	default:
		return domain.StatusNone
	}
}

func propValue(comp *ical.Component, name string) string {
	if prop := comp.Props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}
