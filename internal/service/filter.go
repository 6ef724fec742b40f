package service

import (
	"sort"

	"nextup/internal/domain"
)

// Style is the rendering hint the visibility rules assign to a shown
// event. The core computes it so the status bar and the menu cannot
// disagree about how an event should look.
type Style string

const (
	StyleNormal        Style = "normal"
	StyleInactive      Style = "inactive"
	StyleUnderlined    Style = "underlined"
	StyleStrikethrough Style = "strikethrough"
)

// DisplayItem is one entry of the ordered display list.
type DisplayItem struct {
	Event domain.Event
	Style Style
}

// Included decides whether an event is visible under the given rules.
// It is pure: the same rules drive both the display list and the
// resolver's candidate pool.
func Included(e domain.Event, rules domain.Rules) bool {
	if titleMatchesAny(e.Title, rules) {
		return false
	}

	if e.AllDay {
		switch rules.AllDay {
		case domain.AllDayHide:
			return false
		case domain.AllDayShowWithLinkOnly:
			if !e.HasLink() {
				return false
			}
		}
	} else if rules.NonAllDay == domain.NonAllDayHideWithoutLink && !e.HasLink() {
		return false
	}

	if declinedOrCanceled(e) {
		return rules.Declined != domain.DeclinedHide
	}
	if e.ParticipationStatus == domain.ParticipationPending && rules.Pending == domain.ReplyHide {
		return false
	}
	if e.ParticipationStatus == domain.ParticipationTentative && rules.Tentative == domain.ReplyHide {
		return false
	}
	if e.Personal() && rules.Personal == domain.PersonalHide {
		return false
	}

	return true
}

// styleFor assigns the rendering hint for an event that passed
// Included. Declined styling wins over reply styling, which wins over
// the inactive hints.
func styleFor(e domain.Event, rules domain.Rules) Style {
	if declinedOrCanceled(e) {
		if rules.Declined == domain.DeclinedShowInactive {
			return StyleInactive
		}
		return StyleStrikethrough
	}

	if e.ParticipationStatus == domain.ParticipationPending {
		if s, ok := replyStyle(rules.Pending); ok {
			return s
		}
	}
	if e.ParticipationStatus == domain.ParticipationTentative {
		if s, ok := replyStyle(rules.Tentative); ok {
			return s
		}
	}

	if e.Personal() && rules.Personal == domain.PersonalShowInactive {
		return StyleInactive
	}
	if !e.AllDay && !e.HasLink() && rules.NonAllDay == domain.NonAllDayShowInactiveWithoutLink {
		return StyleInactive
	}

	return StyleNormal
}

func replyStyle(rule domain.ReplyRule) (Style, bool) {
	switch rule {
	case domain.ReplyShowUnderlined:
		return StyleUnderlined, true
	case domain.ReplyShowInactive:
		return StyleInactive, true
	default:
		return StyleNormal, false
	}
}

func declinedOrCanceled(e domain.Event) bool {
	return e.ParticipationStatus == domain.ParticipationDeclined || e.Status == domain.StatusCanceled
}

func titleMatchesAny(title string, rules domain.Rules) bool {
	for _, re := range rules.TitleRegexes {
		if re != nil && re.MatchString(title) {
			return true
		}
	}
	return false
}

// DisplayList filters, orders and styles events for rendering.
func DisplayList(events []domain.Event, rules domain.Rules) []DisplayItem {
	items := make([]DisplayItem, 0, len(events))
	for _, e := range events {
		if !Included(e, rules) {
			continue
		}
		items = append(items, DisplayItem{Event: e, Style: styleFor(e, rules)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return lessByStart(items[i].Event, items[j].Event)
	})
	return items
}

// SortByStart orders events by the display ordering in place.
func SortByStart(events []domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return lessByStart(events[i], events[j])
	})
}

// lessByStart is the total display ordering: start date, then end
// date, then title, then id as the final discriminant.
func lessByStart(a, b domain.Event) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if !a.End.Equal(b.End) {
		return a.End.Before(b.End)
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.ID < b.ID
}
