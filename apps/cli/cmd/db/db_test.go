package db

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/runtime"
)

func TestBootstrapRequiresDatabaseURL(t *testing.T) {
	t.Parallel()

	cmd := Command(&runtime.Options{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"history"})
	require.ErrorContains(t, cmd.ExecuteContext(context.Background()), "database url is required")
}

func TestBootstrapAgainstPostgres(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping postgres bootstrap test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rentals"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	opts := &runtime.Options{}
	opts.DatabaseURL = connString
	opts.DatabaseSchema = "rentals_cli"

	run := func(args ...string) string {
		cmd := Command(opts)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.ExecuteContext(ctx))
		return out.String()
	}

	require.Contains(t, run("history"), `No migrations applied to "rentals_cli".`)

	out := run("bootstrap")
	require.Contains(t, out, "Applied 0001_lease_contracts")
	require.Contains(t, out, "Applied 0002_rent_payments")
	require.Contains(t, out, "Applied 0003_receipt_keys")
	require.Contains(t, out, `Schema "rentals_cli" ready.`)

	out = run("bootstrap")
	require.Contains(t, out, "No pending migrations.")

	out = run("history")
	require.Contains(t, out, "lease_contracts")
	require.Contains(t, out, "rent_payments")
}
