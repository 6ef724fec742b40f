// Package scheduler drives the periodic evaluation of time-triggered
// actions. Each tick runs against one frozen snapshot of events and
// configuration; the ledger is the only state carried between ticks.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"nextup/config"
	"nextup/internal/browser"
	"nextup/internal/domain"
	"nextup/internal/notify"
	"nextup/internal/script"
	"nextup/internal/service"
	"nextup/internal/storage"
)

// Scheduler owns the poll loop: a refresh job keeps the event snapshot
// current and a tick job evaluates the action trigger windows. Only the
// tick mutates the ledger, so concurrent readers never race a write.
type Scheduler struct {
	provider *config.Provider
	storage  *storage.Storage
	events   *service.EventService
	notifier *notify.Manager
	sink     notify.Sink
	runner   *script.Runner

	// openURL is swappable for tests; defaults to the browser opener.
	openURL func(url, browserHint string) error
	// now is swappable for tests.
	now func() time.Time

	// mu serializes ticks and reloads. One logical tick runs to
	// completion before the next starts; nothing below assumes more.
	mu   sync.Mutex
	cron *cron.Cron
	ctx  context.Context

	refreshID       cron.EntryID
	tickID          cron.EntryID
	refreshInterval time.Duration
	tickInterval    time.Duration

	// notifyKey identifies the event revision the pending notification
	// belongs to, so a change of "next" cancels and re-arms.
	notifyKey string
}

func New(provider *config.Provider, store *storage.Storage, events *service.EventService, notifier *notify.Manager, sink notify.Sink, runner *script.Runner) *Scheduler {
	return &Scheduler{
		provider: provider,
		storage:  store,
		events:   events,
		notifier: notifier,
		sink:     sink,
		runner:   runner,
		openURL:  browser.Open,
		now:      time.Now,
	}
}

// Start registers the cron jobs and blocks until ctx is cancelled. The
// first refresh runs immediately so the first tick has events to work
// with.
func (s *Scheduler) Start(ctx context.Context) error {
	cfg := s.provider.Snapshot()

	s.mu.Lock()
	s.ctx = ctx
	s.cron = cron.New(
		cron.WithLocation(cfg.Timezone),
		// A tick that outlasts the interval must not overlap the next
		// one; overlapping ticks would race on the ledger check.
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	err := s.schedule(cfg)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.refresh(ctx)
	s.cron.Start()
	log.Printf("Scheduler started (tick: %s, refresh: %s)", cfg.TickInterval, cfg.RefreshInterval)

	<-ctx.Done()
	return nil
}

// Stop prevents further ticks from starting and waits for an in-flight
// tick to finish, so a ledger write is never interrupted.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// schedule registers the refresh and tick jobs for the snapshot's
// intervals, replacing any previously registered pair. Caller holds mu.
func (s *Scheduler) schedule(cfg *config.Config) error {
	if s.refreshID != 0 {
		s.cron.Remove(s.refreshID)
	}
	if s.tickID != 0 {
		s.cron.Remove(s.tickID)
	}

	ctx := s.ctx
	refreshID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", cfg.RefreshInterval), func() { s.refresh(ctx) })
	if err != nil {
		return fmt.Errorf("add refresh job: %w", err)
	}
	tickID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", cfg.TickInterval), s.tick)
	if err != nil {
		return fmt.Errorf("add tick job: %w", err)
	}

	s.refreshID, s.tickID = refreshID, tickID
	s.refreshInterval, s.tickInterval = cfg.RefreshInterval, cfg.TickInterval
	return nil
}

// Reload applies a fresh configuration snapshot between ticks. The
// pending notification is cancelled and its ledger entry cleared, so
// the still-current next event re-alerts under the new settings
// instead of being silently swallowed. Changed intervals re-register
// the cron jobs.
func (s *Scheduler) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPendingNotification()

	cfg := s.provider.Snapshot()
	if s.cron == nil {
		return
	}
	if cfg.TickInterval == s.tickInterval && cfg.RefreshInterval == s.refreshInterval {
		return
	}
	if err := s.schedule(cfg); err != nil {
		log.Printf("Error rescheduling jobs after reload: %v", err)
	}
}

// refresh updates the event snapshot. Fetch failures are transient:
// log and let the next refresh retry naturally.
func (s *Scheduler) refresh(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	if err := s.events.Refresh(fetchCtx); err != nil {
		log.Printf("Error refreshing events: %v", err)
	}
}

// tick is one full evaluation pass: reap the ledger, then walk each
// enabled action through its trigger window against the frozen
// snapshot.
func (s *Scheduler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.provider.Snapshot()
	now := s.now()

	if _, err := s.storage.Reap(now); err != nil {
		log.Printf("Error reaping ledger: %v", err)
	}

	snap := s.events.Snapshot()

	s.evaluateAutoJoin(cfg, snap, now)
	s.evaluateScript(cfg, snap, now)
	s.evaluateNotification(cfg, snap, now)
}

// armed reports whether an event is inside the action's trigger window:
// its start is less than offset away, or it is already running. The
// second clause is what lets an all-day event qualify; it has no
// meaningful lead time.
func armed(e domain.Event, offset time.Duration, now time.Time) bool {
	lead := e.LeadTime(now)
	if lead > 0 && lead < offset {
		return true
	}
	return e.InProgress(now)
}

func (s *Scheduler) evaluateAutoJoin(cfg *config.Config, snap service.Snapshot, now time.Time) {
	if !cfg.AutoJoin.Enabled {
		return
	}

	e := service.ResolveNext(snap.Events, cfg.Rules, now, service.ResolveOptions{AllowAllDayInProgress: true})
	if e == nil || !e.HasLink() || !armed(*e, cfg.AutoJoin.Offset, now) {
		return
	}

	processed, err := s.storage.IsProcessed(domain.ActionAutoJoin, *e)
	if err != nil {
		log.Printf("Error checking auto-join ledger: %v", err)
		return
	}
	if processed {
		return
	}

	log.Printf("Auto-joining %q via %s", e.Title, e.MeetingLink.Service)
	if err := s.openURL(e.MeetingLink.URL.String(), cfg.Browser); err != nil {
		s.alert("Failed to join meeting", fmt.Sprintf("%s: %v", e.Title, err))
	}
	// Marked even when the open failed: the attempt happened, and
	// retrying a persistently broken browser every tick would only
	// disturb the user.
	if err := s.storage.MarkProcessed(domain.ActionAutoJoin, *e); err != nil {
		log.Printf("Error marking auto-join processed: %v", err)
	}
}

func (s *Scheduler) evaluateScript(cfg *config.Config, snap service.Snapshot, now time.Time) {
	if !cfg.StartScript.Enabled || s.runner == nil || !s.runner.Configured() {
		return
	}

	e := service.ResolveNext(snap.Events, cfg.Rules, now, service.ResolveOptions{AllowAllDayInProgress: true})
	if e == nil || !armed(*e, cfg.StartScript.Offset, now) {
		return
	}

	processed, err := s.storage.IsProcessed(domain.ActionStartScript, *e)
	if err != nil {
		log.Printf("Error checking script ledger: %v", err)
		return
	}
	if processed {
		return
	}

	log.Printf("Running event script for %q", e.Title)
	done := s.runner.Run(context.Background(), *e)
	go func() {
		res := <-done
		if res.Err != nil {
			log.Printf("Event script failed (run %s): %v", res.RunID, res.Err)
			s.alert("Event script failed", res.Err.Error())
		}
	}()

	// The fire-and-forget launch is the side effect; completion is not
	// awaited and failure is not retried.
	if err := s.storage.MarkProcessed(domain.ActionStartScript, *e); err != nil {
		log.Printf("Error marking script processed: %v", err)
	}
}

func (s *Scheduler) evaluateNotification(cfg *config.Config, snap service.Snapshot, now time.Time) {
	if !cfg.Notification.Enabled {
		return
	}

	e := service.ResolveNext(snap.Events, cfg.Rules, now, service.ResolveOptions{})
	if e == nil {
		s.cancelPendingNotification()
		return
	}

	key := notifyKeyFor(*e)
	if s.notifyKey != "" && s.notifyKey != key {
		// The resolved next event changed; a pending alert for the old
		// one is stale. Cancelling before it fired also re-arms it, so
		// the old event still alerts if it becomes next again.
		s.cancelPendingNotification()
	}

	processed, err := s.storage.IsProcessed(domain.ActionJoinNotification, *e)
	if err != nil {
		log.Printf("Error checking notification ledger: %v", err)
		return
	}
	if processed {
		return
	}

	delay := notify.FireDelay(*e, cfg.Notification.Offset, now)
	if !s.notifier.Schedule(*e, "Upcoming meeting", notificationBody(*e), delay) {
		// Below the minimum delay: the alert moment already passed.
		return
	}
	s.notifyKey = key

	if err := s.storage.MarkProcessed(domain.ActionJoinNotification, *e); err != nil {
		log.Printf("Error marking notification processed: %v", err)
	}
}

// cancelPendingNotification cancels any pending alert and clears its
// ledger entry when it had not fired yet, so cancellation does not
// swallow the alert for good.
func (s *Scheduler) cancelPendingNotification() {
	if s.notifyKey == "" {
		return
	}
	prevID := eventIDFromKey(s.notifyKey)
	stillPending := s.notifier.PendingFor(prevID)
	s.notifier.CancelAll()
	if stillPending {
		if err := s.storage.ClearProcessed(domain.ActionJoinNotification, prevID); err != nil {
			log.Printf("Error re-arming notification: %v", err)
		}
	}
	s.notifyKey = ""
}

// notifyKeyFor identifies one event revision. The separator cannot
// occur in RFC3339 timestamps, so the id survives round-tripping.
func notifyKeyFor(e domain.Event) string {
	rev := ""
	if e.LastModified != nil {
		rev = e.LastModified.UTC().Format(time.RFC3339)
	}
	return e.ID + "|" + rev
}

func eventIDFromKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i]
		}
	}
	return key
}

func notificationBody(e domain.Event) string {
	body := fmt.Sprintf("%s starts at %s", e.Title, e.Start.Format("15:04"))
	if e.MeetingLink != nil {
		body += "\n" + e.MeetingLink.URL.String()
	}
	return body
}

// alert surfaces an action failure to the user. Alert failures only go
// to the log; there is nowhere further to escalate.
func (s *Scheduler) alert(title, body string) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Send(title, body); err != nil {
		log.Printf("Error sending alert: %v", err)
	}
}
