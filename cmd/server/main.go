// Command server runs the MPIN credential service. main wires stores,
// the credential engine, and background workers, then owns the process
// lifecycle; business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"pinguard/internal/audit"
	"pinguard/internal/auth/service"
	"pinguard/internal/identity"
	"pinguard/internal/keys"
	"pinguard/internal/ledger"
	"pinguard/internal/lockout"
	"pinguard/internal/pincrypt"
	"pinguard/internal/platform/config"
	"pinguard/internal/platform/httpserver"
	"pinguard/internal/platform/logger"
	"pinguard/internal/platform/metrics"
	"pinguard/internal/platform/postgres"
	platformredis "pinguard/internal/platform/redis"
	"pinguard/internal/risk"
	"pinguard/internal/session"
	httptransport "pinguard/internal/transport/http"
)

const purgeInterval = time.Hour

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	custodian, err := keys.Load(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err != nil {
		return err
	}

	identityStore, ledgerStore, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	attemptLog, err := ledger.New(ledgerStore, ledger.WithLogger(log))
	if err != nil {
		return err
	}
	lockoutMachine, err := lockout.New(identityStore, lockout.WithLogger(log))
	if err != nil {
		return err
	}
	scorer, err := risk.New(attemptLog, risk.WithLogger(log))
	if err != nil {
		return err
	}
	issuer := session.NewIssuer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL)

	publisher := audit.NewPublisher(log)
	sink, closeSink, err := buildAuditSink(cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()
	worker := audit.NewWorker(sink, publisher.Events(), log)

	engine, err := service.New(
		identityStore,
		attemptLog,
		lockoutMachine,
		scorer,
		pincrypt.NewDecryptor(custodian),
		issuer,
		service.WithLogger(log),
		service.WithAuditEmitter(publisher),
		service.WithMetrics(metrics.New()),
	)
	if err != nil {
		return err
	}

	handler := httptransport.NewAuthHandler(engine, issuer, custodian)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, nil))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		return ledger.NewPurger(ledgerStore, purgeInterval, log).Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("starting pinguard", "addr", cfg.Addr,
			"identity_backend", cfg.IdentityBackend,
			"ledger_backend", cfg.LedgerBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildStores selects the identity and ledger backends from config. The
// returned cleanup closes whatever connections were opened.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (identity.Store, ledger.Store, func(), error) {
	cleanup := func() {}

	var identityStore identity.Store
	var ledgerStore ledger.Store

	needsPostgres := cfg.IdentityBackend == "postgres" || cfg.LedgerBackend == "postgres"
	if needsPostgres {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		prev := cleanup
		cleanup = func() { db.Close(); prev() }

		if cfg.IdentityBackend == "postgres" {
			identityStore = identity.NewPostgres(db)
		}
		if cfg.LedgerBackend == "postgres" {
			ledgerStore = ledger.NewPostgres(db)
		}
	}

	if cfg.LedgerBackend == "redis" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		if client == nil {
			cleanup()
			return nil, nil, nil, errors.New("ledger backend is redis but PINGUARD_REDIS_URL is empty")
		}
		prev := cleanup
		cleanup = func() { client.Close(); prev() }
		ledgerStore = ledger.NewRedis(client.Client)
	}

	if identityStore == nil {
		if cfg.IdentityBackend != "memory" {
			cleanup()
			return nil, nil, nil, errors.New("unknown identity backend: " + cfg.IdentityBackend)
		}
		log.Warn("identity store is in-memory, records are lost on restart")
		identityStore = identity.NewMemoryStore()
	}
	if ledgerStore == nil {
		if cfg.LedgerBackend != "memory" {
			cleanup()
			return nil, nil, nil, errors.New("unknown ledger backend: " + cfg.LedgerBackend)
		}
		ledgerStore = ledger.NewMemoryStore()
	}

	return identityStore, ledgerStore, cleanup, nil
}

// buildAuditSink prefers Kafka when brokers are configured and falls back
// to structured logs otherwise.
func buildAuditSink(cfg config.Config, log *slog.Logger) (audit.Sink, func(), error) {
	if len(cfg.AuditBrokers) == 0 {
		return audit.NewSlogSink(log), func() {}, nil
	}
	sink, err := audit.NewKafkaSink(cfg.AuditBrokers, cfg.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	return sink, sink.Close, nil
}
