package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/virgil28labs/timesync/clock"
	"github.com/virgil28labs/timesync/config"
	"github.com/virgil28labs/timesync/coordinator"
	"github.com/virgil28labs/timesync/discord"
	"github.com/virgil28labs/timesync/httpapi"
	"github.com/virgil28labs/timesync/logger"
	"github.com/virgil28labs/timesync/metrics"
	"github.com/virgil28labs/timesync/models"
	"github.com/virgil28labs/timesync/store"
	"github.com/virgil28labs/timesync/timeutil"
	"github.com/virgil28labs/timesync/transport"
	"golang.org/x/sync/errgroup"
)

const pruneInterval = time.Hour

func main() {
	params, err := build()
	if err != nil {
		log.Fatal(err)
	}

	if err = run(params); err != nil {
		log.Fatal(err)
	}
}

func build() (runParams, error) {
	cfg, err := config.LoadWithDefaults("config/config.yaml", "config/secrets.yaml")
	if err != nil {
		return runParams{}, fmt.Errorf("load config: %w", err)
	}

	baseLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return runParams{}, fmt.Errorf("initialize logger: %w", err)
	}

	selfID := cfg.Peer.ID
	if selfID == "" {
		selfID = uuid.NewString()
	}
	appLogger := baseLogger.With("peer", selfID)
	loc := timeutil.Location(cfg.Clock.Location)

	var (
		wall clock.Clock = clock.System()
		ntp  *clock.NTPClock
	)
	if cfg.Clock.Source == clock.SourceNTP {
		ntp = clock.NewNTP(
			clock.WithServer(cfg.Clock.NTPServer),
			clock.WithInterval(cfg.Clock.SyncInterval),
			clock.WithTimeout(cfg.Clock.Timeout),
			clock.WithLogger(appLogger),
		)
		wall = ntp
	}

	tr, err := transport.Open(context.Background(), cfg.Transport, selfID, appLogger)
	if err != nil {
		if !errors.Is(err, transport.ErrUnavailable) {
			return runParams{}, fmt.Errorf("open transport: %w", err)
		}
		appLogger.WarnW("no transport, running solo", "error", err)
		tr = nil
	}

	st := store.NewSQLiteStore(store.Params{
		Path:          cfg.Store.Path,
		FlushDebounce: cfg.Store.FlushDebounce,
		Logger:        appLogger,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(registry)

	// The notifier reads status from the controller, which in turn reports
	// to the notifier, so it is bound after both exist.
	var notifier discord.Discord
	observers := coordinator.Observers{
		store.NewRecorder(st, appLogger),
		collector,
		coordinator.ObserverFunc(func(ev models.SyncEvent) {
			if notifier != nil {
				notifier.Observe(ev)
			}
		}),
	}

	ctrl := coordinator.New(coordinator.Params{
		SelfID:    selfID,
		Config:    cfg.Coordinator,
		Transport: tr,
		Clock:     wall,
		Location:  loc,
		Observer:  observers,
		Logger:    appLogger,
	})

	if cfg.Discord.Enabled() {
		d, err := discord.New(discord.Params{
			Config: cfg.Discord,
			Status: ctrl,
			Logger: appLogger,
		})
		if err != nil {
			return runParams{}, fmt.Errorf("create discord notifier: %w", err)
		}
		notifier = d
	}

	var relay *transport.Relay
	if cfg.HTTP.EnableRelay {
		relay = transport.NewRelay(transport.RelayParams{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Logger:         appLogger,
		})
	}

	apiParams := httpapi.Params{
		Status:   ctrl,
		Journal:  st,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Location: loc,
		Logger:   appLogger,
	}
	if relay != nil {
		apiParams.Relay = relay
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.New(apiParams),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	return runParams{
		Config:     cfg,
		Logger:     appLogger,
		Location:   loc,
		NTP:        ntp,
		Store:      st,
		Metrics:    collector,
		Controller: ctrl,
		Notifier:   notifier,
		Relay:      relay,
		Server:     server,
	}, nil
}

type runParams struct {
	Config     *config.AppConfig
	Logger     logger.Logger
	Location   *time.Location
	NTP        *clock.NTPClock
	Store      *store.SQLiteStore
	Metrics    *metrics.Collector
	Controller *coordinator.Controller
	Notifier   discord.Discord
	Relay      *transport.Relay
	Server     *http.Server
}

// run starts all components and runs the application until shutdown.
func run(p runParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer p.Logger.Sync()

	if err := p.Store.Open(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := p.Store.RestoreFromDisk(ctx, p.Config.Store.Path); err != nil {
		p.Logger.WarnW("restore from disk", "error", err)
	}

	if p.NTP != nil {
		if err := p.NTP.Start(ctx); err != nil {
			return fmt.Errorf("start ntp clock: %w", err)
		}
	}

	if p.Notifier != nil {
		if err := p.Notifier.Start(ctx); err != nil {
			return fmt.Errorf("start discord notifier: %w", err)
		}
	}

	stopCoordinator, err := startCoordinator(ctx, p.Controller, p.Metrics.Deliver)
	if err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	p.Logger.InfoW("coordinator started",
		"state", p.Controller.State().String(),
		"leader", p.Controller.LeaderID(),
		"addr", p.Server.Addr,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), p.Config.HTTP.ShutdownTimeout)
		defer cancel()
		if p.Relay != nil {
			p.Relay.Close()
		}
		return p.Server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		pruneJournal(gctx, p)
		return nil
	})

	err = g.Wait()
	if err != nil {
		p.Logger.ErrorW("shutting down", "error", err)
	}

	stopCoordinator()
	if p.Notifier != nil {
		p.Notifier.Stop()
	}
	if p.NTP != nil {
		p.NTP.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := p.Store.Shutdown(shutdownCtx); serr != nil {
		return errors.Join(err, serr)
	}

	return err
}

// startCoordinator subscribes sub to the controller's time updates and
// starts it. The clock facility ticks only while it has a subscriber, and
// the leader's TIME_SYNC rides on that tick. The returned func unsubscribes
// and destroys the controller.
func startCoordinator(ctx context.Context, ctrl *coordinator.Controller, sub clock.Subscriber) (func(), error) {
	unsubscribe := ctrl.Subscribe(sub)
	if err := ctrl.Start(ctx); err != nil {
		unsubscribe()
		return nil, err
	}
	return func() {
		unsubscribe()
		ctrl.Destroy()
	}, nil
}

// pruneJournal drops journal entries older than the retention window, once
// at startup and then every pruneInterval.
func pruneJournal(ctx context.Context, p runParams) {
	prune := func() {
		now := time.Now()
		cutoff := timeutil.StartOfDay(timeutil.AddDays(now, -p.Config.Store.RetentionDays, p.Location), p.Location)
		n, err := p.Store.PruneEventsBefore(ctx, cutoff)
		if err != nil {
			p.Logger.WarnW("prune journal", "error", err)
			return
		}
		if n > 0 {
			p.Logger.InfoW("pruned journal", "removed", n, "before", cutoff)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
