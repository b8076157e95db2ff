// cmd/api/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"swimclub/internal/billing"
	"swimclub/internal/clients"
	"swimclub/internal/config"
	"swimclub/internal/eventstore"
	"swimclub/internal/httputil"
	"swimclub/internal/ledger"
	"swimclub/internal/membership"
	"swimclub/internal/registration"
	"swimclub/internal/report"
	"swimclub/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "swimclub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := telemetry.NewLogger(cfg.LogLevel, nil)
	if err != nil {
		return err
	}
	if !cfg.EnvFileLoaded {
		log.Debug("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("failed to flush traces")
		}
	}()

	store, journal, closeDB, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	var directory membership.Finder = store
	if cfg.MemberServiceURL != "" {
		directory = clients.NewMemberClient(cfg.MemberServiceURL, clients.WithCache(cfg.MemberCacheSize, time.Minute))
		log.WithField("url", cfg.MemberServiceURL).Info("reading members from remote directory")
	}

	clock := billing.SystemClock{}
	fees := billing.StandardFees{}

	ledgerOpts := []ledger.Option{
		ledger.WithMembers(directory),
		ledger.WithLogger(log.WithField("component", "ledger")),
	}
	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.NewMetrics()
		defer metrics.Shutdown(context.Background())
		ledgerOpts = append(ledgerOpts, ledger.WithMeterProvider(metrics.MeterProvider()))
	}
	// history stays a nil interface without a journal so the route is not mounted.
	var history ledger.History
	var regJournal ledger.Journal
	if journal != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithJournal(journal))
		history = journal
		regJournal = journal
	}
	bills := ledger.NewService(clock, ledgerOpts...)

	registrations := registration.NewService(registration.Config{
		Members:       store,
		Bills:         bills,
		Fees:          fees,
		Clock:         clock,
		Journal:       regJournal,
		Logger:        log.WithField("component", "registration"),
		RatePerMinute: cfg.RegistrationRatePerMinute,
	})
	reports := report.NewService(directory, bills, fees, clock, log.WithField("component", "report"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if metrics != nil {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	registration.NewHandler(registrations).Routes(r)
	membership.NewHandler(store).Routes(r)
	ledger.NewHandler(bills, history).Routes(r)
	report.NewHandler(reports, directory).Routes(r)

	if journal != nil {
		if _, err := bills.Restore(ctx, journal); err != nil {
			return fmt.Errorf("failed to restore ledger: %w", err)
		}
	}
	if n, err := bills.RefreshOverdue(ctx); err != nil {
		log.WithError(err).Warn("failed to refresh overdue bills")
	} else if n > 0 {
		log.WithField("count", n).Info("marked bills overdue")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("swimclub listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStorage returns Postgres-backed members and journal when a database is
// configured, otherwise an in-memory member store and no journal.
func openStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (membership.Store, *ledger.EventJournal, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL set, running in memory without a journal")
		return membership.NewMemoryStore(), nil, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := membership.Migrate(ctx, db); err != nil {
		closeDB()
		return nil, nil, nil, err
	}
	events := eventstore.NewEventStore(db)
	if err := events.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, nil, err
	}

	return membership.NewPostgresStore(db), ledger.NewEventJournal(events), closeDB, nil
}
