package service

import (
	"testing"
	"time"

	"nextup/internal/domain"
)

var resolveNow = time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)

func at(now time.Time, startOffset, endOffset time.Duration, id string) domain.Event {
	e := linkedEvent(id, now.Add(startOffset), now.Add(endOffset))
	return e
}

func TestResolveTieBreakPrefersImminentEvent(t *testing.T) {
	now := resolveNow

	// In progress, 40 minutes left; second event starts in 10 minutes.
	inProgress := at(now, -20*time.Minute, 40*time.Minute, "in-progress")
	imminent := at(now, 10*time.Minute, 70*time.Minute, "imminent")

	got := ResolveNext([]domain.Event{inProgress, imminent}, baseRules(), now, ResolveOptions{})
	if got == nil || got.ID != "imminent" {
		t.Fatalf("resolve = %v, want imminent (starts inside the 13-minute window)", got)
	}

	// Starting in 20 minutes instead: outside the window, in-progress wins.
	distant := at(now, 20*time.Minute, 80*time.Minute, "distant")
	got = ResolveNext([]domain.Event{inProgress, distant}, baseRules(), now, ResolveOptions{})
	if got == nil || got.ID != "in-progress" {
		t.Fatalf("resolve = %v, want in-progress", got)
	}
}

func TestResolveConfigurableLookAhead(t *testing.T) {
	now := resolveNow
	inProgress := at(now, -20*time.Minute, 40*time.Minute, "in-progress")
	upcoming := at(now, 20*time.Minute, 80*time.Minute, "upcoming")

	rules := baseRules()
	rules.LookAhead = 30 * time.Minute

	got := ResolveNext([]domain.Event{inProgress, upcoming}, rules, now, ResolveOptions{})
	if got == nil || got.ID != "upcoming" {
		t.Fatalf("resolve = %v, want upcoming under a 30m window", got)
	}
}

func TestResolveSkipsDeclinedAndCanceled(t *testing.T) {
	now := resolveNow

	declined := at(now, 5*time.Minute, 65*time.Minute, "declined")
	declined.ParticipationStatus = domain.ParticipationDeclined
	canceled := at(now, 6*time.Minute, 66*time.Minute, "canceled")
	canceled.Status = domain.StatusCanceled

	if got := ResolveNext([]domain.Event{declined, canceled}, baseRules(), now, ResolveOptions{}); got != nil {
		t.Fatalf("resolve = %v, want nil", got)
	}
}

func TestResolveDeclinedDoesNotShadowAccepted(t *testing.T) {
	// A declined 09:00-09:30 and an accepted 09:05-09:35, now 09:01.
	now := resolveNow

	declined := at(now, -time.Minute, 29*time.Minute, "A")
	declined.ParticipationStatus = domain.ParticipationDeclined
	accepted := at(now, 4*time.Minute, 34*time.Minute, "B")

	got := ResolveNext([]domain.Event{declined, accepted}, baseRules(), now, ResolveOptions{})
	if got == nil || got.ID != "B" {
		t.Fatalf("resolve = %v, want B", got)
	}
}

func TestResolveSkipsPendingPerRule(t *testing.T) {
	now := resolveNow
	pending := at(now, 5*time.Minute, 65*time.Minute, "pending")
	pending.ParticipationStatus = domain.ParticipationPending

	for _, rule := range []domain.ReplyRule{domain.ReplyHide, domain.ReplyShowInactive} {
		rules := baseRules()
		rules.Pending = rule
		if got := ResolveNext([]domain.Event{pending}, rules, now, ResolveOptions{}); got != nil {
			t.Errorf("rule %s: resolve = %v, want nil", rule, got)
		}
	}

	// show and show_underlined keep pending events eligible.
	rules := baseRules()
	rules.Pending = domain.ReplyShowUnderlined
	if got := ResolveNext([]domain.Event{pending}, rules, now, ResolveOptions{}); got == nil {
		t.Error("pending event should qualify under show_underlined")
	}
}

func TestResolveAllDayOnlyForActions(t *testing.T) {
	now := resolveNow
	allDay := at(now, -9*time.Hour, 15*time.Hour, "all-day")
	allDay.AllDay = true

	if got := ResolveNext([]domain.Event{allDay}, baseRules(), now, ResolveOptions{}); got != nil {
		t.Fatalf("display pool must skip all-day events, got %v", got)
	}

	got := ResolveNext([]domain.Event{allDay}, baseRules(), now, ResolveOptions{AllowAllDayInProgress: true})
	if got == nil || got.ID != "all-day" {
		t.Fatalf("action pool must admit an in-progress all-day event, got %v", got)
	}

	// Tomorrow's all-day event is not in progress and never qualifies.
	tomorrow := at(now, 15*time.Hour, 39*time.Hour, "tomorrow")
	tomorrow.AllDay = true
	rules := baseRules()
	rules.ShowTomorrow = true
	if got := ResolveNext([]domain.Event{tomorrow}, rules, now, ResolveOptions{AllowAllDayInProgress: true}); got != nil {
		t.Fatalf("future all-day event must not qualify, got %v", got)
	}
}

func TestResolveAllDayRespectsStatusInActionPool(t *testing.T) {
	now := resolveNow
	opts := ResolveOptions{AllowAllDayInProgress: true}

	declined := at(now, -9*time.Hour, 15*time.Hour, "allday-declined")
	declined.AllDay = true
	declined.ParticipationStatus = domain.ParticipationDeclined
	if got := ResolveNext([]domain.Event{declined}, baseRules(), now, opts); got != nil {
		t.Fatalf("declined in-progress all-day event resolved, got %v", got)
	}

	canceled := at(now, -9*time.Hour, 15*time.Hour, "allday-canceled")
	canceled.AllDay = true
	canceled.Status = domain.StatusCanceled
	if got := ResolveNext([]domain.Event{canceled}, baseRules(), now, opts); got != nil {
		t.Fatalf("canceled in-progress all-day event resolved, got %v", got)
	}
}

func TestResolveWindowBounds(t *testing.T) {
	now := resolveNow

	// Ends within the coming minute: too late to matter.
	ending := at(now, -30*time.Minute, 30*time.Second, "ending")
	// Starts tomorrow: outside the default period.
	tomorrow := at(now, 26*time.Hour, 27*time.Hour, "tomorrow")

	if got := ResolveNext([]domain.Event{ending, tomorrow}, baseRules(), now, ResolveOptions{}); got != nil {
		t.Fatalf("resolve = %v, want nil", got)
	}

	rules := baseRules()
	rules.ShowTomorrow = true
	got := ResolveNext([]domain.Event{ending, tomorrow}, rules, now, ResolveOptions{})
	if got == nil || got.ID != "tomorrow" {
		t.Fatalf("resolve = %v, want tomorrow under the extended period", got)
	}
}

func TestResolveSkipsPersonalUnlessShowActive(t *testing.T) {
	now := resolveNow
	personal := at(now, 5*time.Minute, 65*time.Minute, "personal")
	personal.Attendees = nil

	rules := baseRules()
	rules.Personal = domain.PersonalShowInactive
	if got := ResolveNext([]domain.Event{personal}, rules, now, ResolveOptions{}); got != nil {
		t.Fatalf("resolve = %v, want nil", got)
	}

	rules.Personal = domain.PersonalShowActive
	if got := ResolveNext([]domain.Event{personal}, rules, now, ResolveOptions{}); got == nil {
		t.Fatal("personal event should qualify under show_active")
	}
}

func TestResolveEmpty(t *testing.T) {
	if got := ResolveNext(nil, baseRules(), resolveNow, ResolveOptions{}); got != nil {
		t.Fatalf("resolve on empty input = %v, want nil", got)
	}
}
