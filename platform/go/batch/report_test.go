package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportFailAndMerge(t *testing.T) {
	t.Parallel()

	var total Report
	first := Report{Scanned: 3, Updated: 2}
	first.Fail("p-1", errors.New("conflict"))

	total.Merge(first)
	total.Merge(Report{Scanned: 1, Skipped: 1})

	require.Equal(t, Report{
		Scanned:  4,
		Updated:  2,
		Skipped:  1,
		Failed:   1,
		Failures: []Failure{{ID: "p-1", Error: "conflict"}},
	}, total)
	require.Equal(t, "scanned=4 updated=2 skipped=1 failed=1", total.String())
}
