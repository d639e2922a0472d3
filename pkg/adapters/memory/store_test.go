package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stategraph/pkg/adapters/memory"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	snap := &domain.Snapshot{ID: "s1", Values: map[string]any{"total": 1.0}}
	require.NoError(t, store.Save(ctx, snap))
	snap.Values["total"] = 2.0

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, loaded.Values["total"])

	loaded.Values["total"] = 3.0
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Values["total"])
}
