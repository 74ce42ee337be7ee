// Package engine wires the lease, payment and statistics services for the
// API server and the admin CLI.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	leasesrepo "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/repo"
	leases "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	paymentsrepo "github.com/zenGate-Global/palmyra-rentals/domains/payments/be/repo"
	payments "github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	statistics "github.com/zenGate-Global/palmyra-rentals/domains/statistics/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/events"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/money"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/storage"
)

// Config holds the settings shared by every entrypoint.
type Config struct {
	DatabaseURL     string          `env:"DATABASE_URL"` // empty selects in-memory repositories
	DatabaseSchema  string          `env:"DATABASE_SCHEMA" envDefault:"rentals"`
	AutoBootstrap   bool            `env:"DATABASE_BOOTSTRAP" envDefault:"true"`
	MaxConns        int32           `env:"DATABASE_MAX_CONNS"`
	MaxConnLifetime time.Duration   `env:"DATABASE_CONN_LIFETIME"`
	GracePeriodDays int             `env:"GRACE_PERIOD_DAYS" envDefault:"5"`
	LateFeeRate     decimal.Decimal `env:"LATE_FEE_RATE" envDefault:"0.05"`
	DefaultCurrency string          `env:"DEFAULT_CURRENCY" envDefault:"XOF"`
	EventBuffer     int             `env:"EVENT_BUFFER" envDefault:"256"`
	StorageBackend  string          `env:"STORAGE_BACKEND" envDefault:"none"` // gcs | local | none
	StorageBucket   string          `env:"STORAGE_BUCKET"`                    // required when STORAGE_BACKEND=gcs
	StoragePrefix   string          `env:"STORAGE_PREFIX"`
	StorageLocalDir string          `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"` // used when STORAGE_BACKEND=local
}

// Engine is a fully wired set of services. Close releases everything Open
// acquired.
type Engine struct {
	Leases     *leases.Service
	Payments   *payments.Service
	Statistics statistics.Service
	Bus        *events.Bus
	Documents  storage.DocumentStore
	Pool       *pgxpool.Pool

	closers []func()
}

// Open builds the services described by cfg and starts the event bus.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := money.Lookup(cfg.DefaultCurrency); err != nil {
		return nil, fmt.Errorf("DEFAULT_CURRENCY: %w", err)
	}
	if cfg.LateFeeRate.IsNegative() || cfg.LateFeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("LATE_FEE_RATE must be between 0 and 1, got %s", cfg.LateFeeRate)
	}

	e := &Engine{}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	docs, err := e.openDocuments(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.Documents = docs

	bus := events.NewBus(cfg.EventBuffer, logger.Named("events"))
	bus.Subscribe("log", events.LogConsumer{Logger: logger.Named("events")})
	if _, isNop := docs.(storage.Nop); !isNop {
		bus.Subscribe("documents", events.DocumentConsumer{Store: docs})
	}
	busCtx, cancelBus := context.WithCancel(context.Background())
	bus.Start(busCtx)
	e.Bus = bus
	e.closers = append(e.closers, func() {
		bus.Stop()
		cancelBus()
	})

	var (
		contractRepo leases.Repository
		paymentRepo  payments.Repository
	)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		contractRepo = leasesrepo.NewMemoryRepository()
		paymentRepo = paymentsrepo.NewMemoryRepository()
	} else {
		pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
			ConnString:      cfg.DatabaseURL,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres pool: %w", err)
		}
		e.Pool = pool
		e.closers = append(e.closers, func() { persistence.ClosePool(pool) })

		if cfg.AutoBootstrap {
			if err := persistence.Bootstrap(ctx, pool, cfg.DatabaseSchema); err != nil {
				return nil, fmt.Errorf("bootstrap schema %q: %w", cfg.DatabaseSchema, err)
			}
		}

		contractStore, err := persistence.NewContractStore(pool, cfg.DatabaseSchema)
		if err != nil {
			return nil, fmt.Errorf("init contract store: %w", err)
		}
		paymentStore, err := persistence.NewPaymentStore(pool, cfg.DatabaseSchema)
		if err != nil {
			return nil, fmt.Errorf("init payment store: %w", err)
		}
		contractRepo = leasesrepo.NewPostgresRepository(contractStore)
		paymentRepo = paymentsrepo.NewPostgresRepository(paymentStore)
	}

	now := func() time.Time { return time.Now().UTC() }
	e.Leases = leases.New(contractRepo, leases.Config{
		Publisher:       bus,
		Logger:          logger.Named("leases"),
		Now:             now,
		DefaultCurrency: cfg.DefaultCurrency,
	})
	e.Payments = payments.New(paymentRepo, e.Leases, payments.Config{
		GracePeriodDays: cfg.GracePeriodDays,
		LateFeeRate:     cfg.LateFeeRate,
		Publisher:       bus,
		Logger:          logger.Named("payments"),
		Now:             now,
	})
	e.Statistics = statistics.New(e.Payments, e.Leases, statistics.Config{
		GracePeriodDays: cfg.GracePeriodDays,
		DefaultCurrency: cfg.DefaultCurrency,
		Logger:          logger.Named("statistics"),
	})

	ok = true
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *Engine) openDocuments(ctx context.Context, cfg Config) (storage.DocumentStore, error) {
	switch cfg.StorageBackend {
	case "", "none":
		return storage.Nop{}, nil
	case "gcs":
		if cfg.StorageBucket == "" {
			return nil, errors.New("storage bucket required when STORAGE_BACKEND=gcs")
		}
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		e.closers = append(e.closers, func() { _ = client.Close() })
		return storage.NewGCSStore(client, cfg.StorageBucket, cfg.StoragePrefix), nil
	case "local":
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			return nil, errors.New("storage local dir required when STORAGE_BACKEND=local")
		}
		return storage.NewLocalStore(cfg.StorageLocalDir, cfg.StoragePrefix), nil
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (use gcs, local or none)", cfg.StorageBackend)
	}
}
