package stats

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/runtime"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	o := &runtime.Options{InMemory: true, LogLevel: "error"}
	o.DefaultCurrency = "XOF"
	o.GracePeriodDays = 5
	o.LateFeeRate = decimal.RequireFromString("0.05")

	cmd := Command(o)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCollectionOnEmptyBook(t *testing.T) {
	t.Parallel()

	out, err := run(t, "collection", "--from", "2025-01-01", "--to", "2025-04-01")
	require.NoError(t, err)
	require.JSONEq(t, `{"currency":"XOF","expected":"0","collected":"0","rate":"0","count":0}`, out)
}

func TestCollectionMonthly(t *testing.T) {
	t.Parallel()

	out, err := run(t, "collection", "--from", "2025-01-01", "--to", "2025-03-01", "--monthly")
	require.NoError(t, err)
	require.Contains(t, out, `"month": "2025-01"`)
	require.Contains(t, out, `"month": "2025-02"`)
}

func TestCollectionValidation(t *testing.T) {
	t.Parallel()

	_, err := run(t, "collection", "--from", "2025-01-01")
	require.Error(t, err)

	_, err = run(t, "collection", "--from", "2025-04-01", "--to", "2025-01-01")
	require.Error(t, err)

	_, err = run(t, "collection", "--from", "2025-01-01", "--to", "2025-02-01", "--report-currency", "ZZZ")
	require.Error(t, err)
}

func TestOverduePrintsHeader(t *testing.T) {
	t.Parallel()

	out, err := run(t, "overdue", "--as-of", "2025-03-10")
	require.NoError(t, err)
	require.Contains(t, out, "OUTSTANDING")
}
