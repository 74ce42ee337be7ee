package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/storage"
)

func memoryConfig() Config {
	return Config{
		DatabaseSchema:  "rentals",
		GracePeriodDays: 5,
		LateFeeRate:     decimal.RequireFromString("0.05"),
		DefaultCurrency: "XOF",
		EventBuffer:     16,
		StorageBackend:  "none",
	}
}

func TestOpenInMemory(t *testing.T) {
	t.Parallel()

	e, err := Open(context.Background(), memoryConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	require.NotNil(t, e.Leases)
	require.NotNil(t, e.Payments)
	require.NotNil(t, e.Statistics)
	require.Nil(t, e.Pool)
	require.IsType(t, storage.Nop{}, e.Documents)
	require.Equal(t, 5, e.Payments.GracePeriodDays())
}

func TestOpenLocalStorage(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.StorageBackend = "local"
	cfg.StorageLocalDir = t.TempDir()

	e, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	require.IsType(t, &storage.LocalStore{}, e.Documents)
	require.NoError(t, e.Documents.Check(context.Background()))
}

func TestOpenRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"unknown currency": func(c *Config) { c.DefaultCurrency = "ZZZ" },
		"rate above one":   func(c *Config) { c.LateFeeRate = decimal.NewFromInt(2) },
		"unknown backend":  func(c *Config) { c.StorageBackend = "s3" },
		"gcs no bucket":    func(c *Config) { c.StorageBackend = "gcs" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := memoryConfig()
			mutate(&cfg)
			_, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
			require.Error(t, err)
		})
	}
}
