package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "condohub:jobs:finance:overdue_sweep:lock", JobLockKey("finance:overdue_sweep"))
	require.Equal(t, "condohub:dashboard:4:version", DashboardVersionKey(4))
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	require.False(t, ok)

	id, ok := ActorFromContext(ContextWithActor(context.Background(), 7))
	require.True(t, ok)
	require.EqualValues(t, 7, id)

	_, ok = ActorFromContext(ContextWithActor(context.Background(), 0))
	require.False(t, ok)
}
