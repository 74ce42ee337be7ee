package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements(`
CREATE TABLE a (id int);

CREATE INDEX a_id ON a (id);
;
`)
	require.Equal(t, []string{"CREATE TABLE a (id int)", "CREATE INDEX a_id ON a (id)"}, got)
}

func TestMigrateRequiresPoolAndSchema(t *testing.T) {
	t.Parallel()

	_, err := Migrate(context.Background(), nil, DefaultSchema)
	require.ErrorContains(t, err, "pool is required")
}
