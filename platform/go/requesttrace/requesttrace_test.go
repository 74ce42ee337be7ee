package requesttrace

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	audit := AuditInfo{ActorKind: ActorKindUser, ActorID: "agent-123", RequestID: "req-abc"}
	ctx := IntoContext(context.Background(), audit)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, audit, got)
	require.Equal(t, "agent-123", ActorFromContext(ctx))
}

func TestMissingAuditFallsBackToAnonymous(t *testing.T) {
	t.Parallel()

	_, ok := FromContext(context.Background())
	require.False(t, ok)
	require.Equal(t, "anonymous", ActorFromContext(context.Background()))
}

func TestForUser(t *testing.T) {
	t.Parallel()

	audit, err := ForUser(" agent-456 ", "req-xyz")
	require.NoError(t, err)
	require.Equal(t, ActorKindUser, audit.ActorKind)
	require.Equal(t, "agent-456", audit.ActorID)
	require.Equal(t, "req-xyz", audit.RequestID)

	for name, id := range map[string]string{
		"empty":      "  ",
		"whitespace": "agent 1",
		"control":    "agent\x01",
		"too long":   strings.Repeat("a", MaxActorIDLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ForUser(id, "req-1")
			require.Error(t, err)
		})
	}
}

func TestActorByKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "anonymous", Anonymous("req-anon").Actor())
	require.Equal(t, "system", System("", "req-1").Actor())
	require.Equal(t, "system:late-sweep", System("late-sweep", "req-2").Actor())
	require.Equal(t, "anonymous", AuditInfo{ActorKind: ActorKindUser}.Actor())
}
