package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveObjectLocation(t *testing.T) {
	loc, err := ResolveObjectLocation("rentals-dev-docs", "dev/rentals/", ReceiptKey("LC-2025-ABCD1234", "p-1"))
	require.NoError(t, err)
	require.Equal(t, "rentals-dev-docs", loc.Bucket)
	require.Equal(t, "dev/rentals/receipts/LC-2025-ABCD1234/p-1.json", loc.FullPath)
	require.Equal(t, "rentals-dev-docs/dev/rentals/receipts/LC-2025-ABCD1234/p-1.json", loc.String())
}

func TestResolveObjectLocation_trimsSlashAndValidates(t *testing.T) {
	loc, err := ResolveObjectLocation("bucket", "", "/deposits/x.json")
	require.NoError(t, err)
	require.Equal(t, "deposits/x.json", loc.FullPath)

	_, err = ResolveObjectLocation("", "dev", "a.json")
	require.Error(t, err)

	_, err = ResolveObjectLocation("bucket", "dev", "  ")
	require.Error(t, err)

	_, err = ResolveObjectLocation("bucket", "dev", "../escape.json")
	require.Error(t, err)
}

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "test")
	require.NoError(t, store.Check(context.Background()))

	loc, err := store.Put(context.Background(), DepositStatementKey("LC-1", "p-9"), "application/json", []byte(`{"ok":true}`))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "test", "deposits", "LC-1", "p-9.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(data))
	require.Equal(t, "test/deposits/LC-1/p-9.json", loc.FullPath)
}

func TestNopStore(t *testing.T) {
	loc, err := Nop{}.Put(context.Background(), "receipts/a.json", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, "receipts/a.json", loc.FullPath)
}
