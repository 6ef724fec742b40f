package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"nextup/config"
	"nextup/internal/domain"
	"nextup/internal/meeting"
	"nextup/internal/notify"
	"nextup/internal/script"
	"nextup/internal/service"
	"nextup/internal/storage"
)

type recordingSink struct {
	mu    sync.Mutex
	sends []string
}

func (r *recordingSink) Send(title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, title)
	return nil
}

type fixture struct {
	sched  *Scheduler
	store  *storage.Storage
	events *service.EventService
	sink   *recordingSink
	cfg    *config.Config

	mu    sync.Mutex
	raws  []domain.Raw
	opens []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, sink: &recordingSink{}}

	source := service.SourceFunc(func(ctx context.Context, from, to time.Time) ([]domain.Raw, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return append([]domain.Raw(nil), f.raws...), nil
	})
	f.events = service.NewEventService([]service.Source{source}, store, meeting.Options{})

	f.cfg = &config.Config{
		Timezone:     time.UTC,
		Rules:        domain.Rules{}.Normalize(),
		AutoJoin:     config.ActionConfig{Enabled: true, Offset: 5 * time.Minute},
		StartScript:  config.ActionConfig{Offset: 5 * time.Minute},
		Notification: config.ActionConfig{Offset: 5 * time.Minute},
	}

	notifier := notify.NewManager(f.sink)
	runner := script.NewRunner("", 0)
	f.sched = New(config.NewProvider(f.cfg), store, f.events, notifier, f.sink, runner)
	f.sched.openURL = func(url, hint string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.opens = append(f.opens, url)
		return nil
	}

	return f
}

func (f *fixture) setEvents(t *testing.T, raws ...domain.Raw) {
	t.Helper()
	f.mu.Lock()
	f.raws = raws
	f.mu.Unlock()
	if err := f.events.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
}

func (f *fixture) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opens)
}

func meetingRaw(id string, start, end time.Time, lastModified *time.Time) domain.Raw {
	return domain.Raw{
		ID:           id,
		Title:        "Sync " + id,
		Start:        start,
		End:          end,
		Location:     "https://company.zoom.us/j/123456789",
		LastModified: lastModified,
	}
}

func TestAutoJoinFiresExactlyOnce(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	lm := now.Add(-time.Hour)

	f.setEvents(t, meetingRaw("e1", now.Add(2*time.Minute), now.Add(32*time.Minute), &lm))

	f.sched.tick()
	if f.openCount() != 1 {
		t.Fatalf("opens after first tick = %d, want 1", f.openCount())
	}

	// Re-polling the unchanged event must short-circuit on the ledger.
	f.sched.tick()
	f.sched.tick()
	if f.openCount() != 1 {
		t.Fatalf("opens after re-polling = %d, want 1", f.openCount())
	}
}

func TestAutoJoinIdleOutsideWindow(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.setEvents(t, meetingRaw("e1", now.Add(30*time.Minute), now.Add(time.Hour), nil))

	f.sched.tick()
	if f.openCount() != 0 {
		t.Fatalf("opens = %d, want 0 (lead time exceeds offset)", f.openCount())
	}
}

func TestAutoJoinRearmsOnReschedule(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	lm1 := now.Add(-time.Hour)

	f.setEvents(t, meetingRaw("e1", now.Add(2*time.Minute), now.Add(32*time.Minute), &lm1))
	f.sched.tick()
	if f.openCount() != 1 {
		t.Fatalf("opens = %d, want 1", f.openCount())
	}

	// The organizer edits the event: same id, new last-modified.
	lm2 := now.Add(-time.Minute)
	f.setEvents(t, meetingRaw("e1", now.Add(3*time.Minute), now.Add(33*time.Minute), &lm2))
	f.sched.tick()
	if f.openCount() != 2 {
		t.Fatalf("opens after reschedule = %d, want 2", f.openCount())
	}
}

func TestAutoJoinAllDayInProgress(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	raw := meetingRaw("allday", now.Add(-6*time.Hour), now.Add(18*time.Hour), nil)
	raw.AllDay = true
	f.setEvents(t, raw)

	f.sched.tick()
	if f.openCount() != 1 {
		t.Fatalf("opens = %d, want 1 (all-day event arms while in progress)", f.openCount())
	}
	f.sched.tick()
	if f.openCount() != 1 {
		t.Fatalf("opens after second tick = %d, want 1", f.openCount())
	}
}

func TestScriptMarkedProcessedOnFire(t *testing.T) {
	f := newFixture(t)
	f.cfg.StartScript.Enabled = true
	f.sched.runner = script.NewRunner("true", time.Second)

	now := time.Now()
	f.setEvents(t, meetingRaw("e1", now.Add(2*time.Minute), now.Add(32*time.Minute), nil))

	f.sched.tick()

	snap := f.events.Snapshot()
	if len(snap.Events) != 1 {
		t.Fatalf("snapshot has %d events, want 1", len(snap.Events))
	}
	processed, err := f.store.IsProcessed(domain.ActionStartScript, snap.Events[0])
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Fatal("script fire must mark the ledger")
	}
}

func TestNotificationScheduledAheadOfWindow(t *testing.T) {
	f := newFixture(t)
	f.cfg.Notification.Enabled = true

	now := time.Now()
	f.setEvents(t, meetingRaw("e1", now.Add(10*time.Minute), now.Add(40*time.Minute), nil))

	f.sched.tick()

	snap := f.events.Snapshot()
	processed, err := f.store.IsProcessed(domain.ActionJoinNotification, snap.Events[0])
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Fatal("scheduled notification must mark the ledger")
	}
	if !f.sched.notifier.PendingFor(snap.Events[0].ID) {
		t.Fatal("notification should be pending, not fired")
	}
}

func TestNotificationSuppressedWhenTooLate(t *testing.T) {
	f := newFixture(t)
	f.cfg.Notification.Enabled = true

	// Starts in 2 minutes with a 5 minute offset: the alert moment is
	// already in the past.
	now := time.Now()
	f.setEvents(t, meetingRaw("e1", now.Add(2*time.Minute), now.Add(32*time.Minute), nil))

	f.sched.tick()

	snap := f.events.Snapshot()
	processed, err := f.store.IsProcessed(domain.ActionJoinNotification, snap.Events[0])
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatal("suppressed notification must not mark the ledger")
	}
	if f.sched.notifier.PendingFor("e1") {
		t.Fatal("nothing should be pending")
	}
}

func TestNotificationCancelledWhenNextChanges(t *testing.T) {
	f := newFixture(t)
	f.cfg.Notification.Enabled = true

	now := time.Now()
	f.setEvents(t, meetingRaw("a", now.Add(30*time.Minute), now.Add(time.Hour), nil))
	f.sched.tick()
	if !f.sched.notifier.PendingFor("a") {
		t.Fatal("notification for a should be pending")
	}

	// A newly created earlier meeting takes over as "next".
	f.setEvents(t,
		meetingRaw("a", now.Add(30*time.Minute), now.Add(time.Hour), nil),
		meetingRaw("b", now.Add(15*time.Minute), now.Add(45*time.Minute), nil),
	)
	f.sched.tick()

	if f.sched.notifier.PendingFor("a") {
		t.Fatal("stale notification for a must be cancelled")
	}
	if !f.sched.notifier.PendingFor("b") {
		t.Fatal("notification for b should be pending")
	}

	// The cancelled alert re-armed: a can alert again if it becomes
	// next once more.
	snapA := domain.Event{ID: "a"}
	processed, err := f.store.IsProcessed(domain.ActionJoinNotification, snapA)
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatal("cancelled notification must clear its ledger entry")
	}
}

func TestConcurrentTicksFireOnce(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	lm := now.Add(-time.Hour)
	f.setEvents(t, meetingRaw("e1", now.Add(2*time.Minute), now.Add(32*time.Minute), &lm))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.sched.tick()
		}()
	}
	wg.Wait()

	if f.openCount() != 1 {
		t.Fatalf("opens = %d, want 1 (overlapping ticks must serialize on the ledger)", f.openCount())
	}
}

func TestReloadRearmsPendingNotification(t *testing.T) {
	f := newFixture(t)
	f.cfg.Notification.Enabled = true

	now := time.Now()
	f.setEvents(t, meetingRaw("e1", now.Add(30*time.Minute), now.Add(time.Hour), nil))

	f.sched.tick()
	if !f.sched.notifier.PendingFor("e1") {
		t.Fatal("notification should be pending before reload")
	}

	f.sched.Reload()
	if f.sched.notifier.PendingFor("e1") {
		t.Fatal("reload must cancel the pending alert")
	}
	snap := f.events.Snapshot()
	processed, err := f.store.IsProcessed(domain.ActionJoinNotification, snap.Events[0])
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatal("reload must clear the ledger entry so the event re-arms")
	}

	// The still-current next event alerts again on the next tick.
	f.sched.tick()
	if !f.sched.notifier.PendingFor("e1") {
		t.Fatal("next tick must reschedule the alert")
	}
}

func TestReloadAppliesNewIntervals(t *testing.T) {
	f := newFixture(t)
	f.cfg.TickInterval = 10 * time.Second
	f.cfg.RefreshInterval = time.Minute

	f.sched.ctx = context.Background()
	f.sched.cron = cron.New(cron.WithLocation(time.UTC))
	if err := f.sched.schedule(f.cfg); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	oldTick := f.sched.tickID

	f.cfg.TickInterval = 30 * time.Second
	f.sched.Reload()

	if f.sched.tickID == oldTick {
		t.Fatal("changed tick interval must re-register the job")
	}
	if f.sched.tickInterval != 30*time.Second {
		t.Errorf("tickInterval = %v, want 30s", f.sched.tickInterval)
	}
	if len(f.sched.cron.Entries()) != 2 {
		t.Errorf("cron entries = %d, want 2 (old jobs removed)", len(f.sched.cron.Entries()))
	}
}

func TestTickDegradesToNoOpWithoutEvents(t *testing.T) {
	f := newFixture(t)
	f.cfg.Notification.Enabled = true
	f.setEvents(t)

	f.sched.tick()
	if f.openCount() != 0 {
		t.Fatalf("opens = %d, want 0", f.openCount())
	}

	f.sink.mu.Lock()
	sends := len(f.sink.sends)
	f.sink.mu.Unlock()
	if sends != 0 {
		t.Fatalf("sends = %d, want 0", sends)
	}
}
