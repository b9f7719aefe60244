// Package main initializes and starts the zoning lookup API server, setting
// up configuration, logging, storage, outbound clients, services and
// handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parseldeger/imar/internal/analysis"
	"github.com/parseldeger/imar/internal/config"
	"github.com/parseldeger/imar/internal/db"
	"github.com/parseldeger/imar/internal/gemini"
	"github.com/parseldeger/imar/internal/identity"
	"github.com/parseldeger/imar/internal/logger"
	"github.com/parseldeger/imar/internal/repository"
	"github.com/parseldeger/imar/internal/search"
	"github.com/parseldeger/imar/internal/server/handler/http"
	"github.com/parseldeger/imar/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	cleanInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

// accountStore is everything the services need from account storage.
type accountStore interface {
	service.AccountRepository
	service.SessionStore
	service.AccountLookup
	db.SessionPurger
}

type storage struct {
	accounts accountStore
	ledger   service.LedgerRepository
	payments service.PaymentLookup
	close    func() error
}

func openStorage(ctx context.Context, opts *config.Options) (*storage, error) {
	if opts.Storage == config.StorageMemory {
		mem := repository.NewMemoryRepository()
		return &storage{accounts: mem, ledger: mem, payments: mem, close: func() error { return nil }}, nil
	}

	pg, err := db.InitPostgres(ctx, opts.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return &storage{
		accounts: repository.NewPostgresAccountRepository(pg),
		ledger:   repository.NewPostgresLedgerRepository(pg),
		payments: repository.NewPostgresPaymentRepository(pg),
		close:    pg.Close,
	}, nil
}

func main() {
	// Parse the config file, command-line flags and environment.
	options, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel, options.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage and apply migrations.
	store, err := openStorage(ctx, options)
	if err != nil {
		zapLogger.Fatal("cannot init storage", zap.Error(err), zap.String("storage", options.Storage))
	}
	defer func() { _ = store.close() }()

	if len(options.GeminiAPIKeys) == 0 {
		zapLogger.Warn("no model credentials configured, analyses will return a placeholder")
	}
	if options.WebhookSecret == "" {
		zapLogger.Warn("webhook secret is empty, every payment notification will be rejected")
	}

	// Outbound clients. Model calls are bounded by the request context only.
	outbound := &nethttp.Client{Timeout: 30 * time.Second}
	braveClient := search.NewBraveClient(cmp.Or(options.BraveSearchURL, search.DefaultBraveURL), options.BraveAPIKey, outbound)
	generator := gemini.New(gemini.Options{Model: options.GeminiModel})
	identityClient := identity.NewClient(cmp.Or(options.IdentityURL, identity.DefaultURL), outbound)

	// Initialize business-logic services.
	clock := service.RealClock{}
	ledger := service.NewLedger(store.ledger, clock)
	analysisService := service.NewAnalysisService(
		ledger,
		search.NewAggregator(braveClient, zapLogger),
		analysis.NewEngine(generator, options.GeminiAPIKeys, zapLogger),
		clock,
		zapLogger,
	)
	authService := service.NewAuthService(store.accounts, identityClient, clock, service.UUIDGenerator{}, options.SignupCredits)
	reconciler := service.NewPaymentReconciler(
		store.payments,
		store.accounts,
		ledger,
		service.WebhookCredentials{Username: options.WebhookUsername, Secret: options.WebhookSecret},
		zapLogger,
	)

	// Build the router with middleware and routes.
	router := http.NewRouter(
		&http.AnalysisHandler{AnalysisService: analysisService, Log: zapLogger},
		&http.AuthHandler{AuthService: authService, CookieSecure: options.CookieSecure, Log: zapLogger},
		&http.PaymentHandler{Reconciler: reconciler, Log: zapLogger},
		http.RouterConfig{
			Resolver:    service.NewIdentityResolver(store.accounts, clock),
			CORSOrigins: options.CORSOrigins,
			Logger:      zapLogger,
		},
	)

	server := &nethttp.Server{
		Addr:              options.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Purge long-expired sessions in the background.
	db.StartSessionCleaner(gCtx, store.accounts, cleanInterval, time.Duration(options.SessionRetention), zapLogger)

	g.Go(func() error {
		zapLogger.Info("starting HTTP server",
			zap.String("addr", options.ServerAddress),
			zap.String("storage", options.Storage),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		zapLogger.Info("shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
