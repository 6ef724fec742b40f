package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nextup/config"
	"nextup/internal/clients/caldav"
	"nextup/internal/clients/icsfeed"
	"nextup/internal/domain"
	"nextup/internal/meeting"
	"nextup/internal/notify"
	"nextup/internal/scheduler"
	"nextup/internal/script"
	"nextup/internal/service"
	"nextup/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	provider := config.NewProvider(cfg)

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	sources := buildSources(cfg)
	if len(sources) == 0 {
		log.Println("Warning: no calendar sources configured")
	}

	events := service.NewEventService(sources, store, linkOptions(cfg))

	var sink notify.Sink = notify.LogSink{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatalf("Failed to init notification sink: %v", err)
		}
		sink = tg
	}
	notifier := notify.NewManager(sink)

	runner := script.NewRunner(cfg.ScriptPath, cfg.ScriptTimeout)

	sched := scheduler.New(provider, store, events, notifier, sink, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	log.Println("nextup started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			reload(provider, sched)
			continue
		}
		break
	}

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("nextup stopped")
}

// reload re-reads the configuration and publishes it for the next tick.
// The scheduler cancels and re-arms its pending notification and picks
// up changed intervals.
func reload(provider *config.Provider, sched *scheduler.Scheduler) {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Config reload failed, keeping previous: %v", err)
		return
	}
	provider.Store(cfg)
	sched.Reload()
	log.Println("Config reloaded")
}

// buildSources wires the configured calendar clients into the event
// service's source list.
func buildSources(cfg *config.Config) []service.Source {
	var sources []service.Source

	cdClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.AccountEmail, "CalDAV")
	if cdClient.IsConfigured() {
		sources = append(sources, service.SourceFunc(func(ctx context.Context, from, to time.Time) ([]domain.Raw, error) {
			calendars, err := cdClient.DiscoverCalendars(ctx)
			if err != nil {
				return nil, err
			}
			return cdClient.FetchEvents(ctx, calendars, from, to)
		}))
	}

	if len(cfg.Feeds) > 0 {
		feeds := make([]icsfeed.Feed, 0, len(cfg.Feeds))
		for _, f := range cfg.Feeds {
			feeds = append(feeds, icsfeed.Feed{Name: f.Name, URL: f.URL})
		}
		feedClient := icsfeed.NewClient(cfg.AccountEmail)
		sources = append(sources, service.SourceFunc(func(ctx context.Context, from, to time.Time) ([]domain.Raw, error) {
			return feedClient.FetchEvents(ctx, feeds, from, to)
		}))
	}

	return sources
}

func linkOptions(cfg *config.Config) meeting.Options {
	return meeting.Options{
		CustomRegex:   cfg.CustomLinkRegex,
		DetectAnyLink: cfg.DetectAnyLink,
		AccountEmail:  cfg.AccountEmail,
	}
}
