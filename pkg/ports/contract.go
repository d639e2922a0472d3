package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stategraph/pkg/domain"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	schema := domain.MustSchema(
		domain.Number("total", 0),
		domain.Enum("target_currency", "INR", "INR", "EUR"),
		domain.Messages("messages"),
	)
	state, err := domain.NewState(schema, map[string]any{
		"total":           1080,
		"target_currency": "EUR",
		"messages": []domain.Message{
			domain.UserMessage("price of META?"),
			domain.AssistantMessage("", domain.ToolCall{ID: "c1", Name: "get_stock_price", Args: map[string]any{"symbol": "META"}}),
			domain.ToolMessage(domain.ToolCall{ID: "c1", Name: "get_stock_price"}, "200.3", false),
		},
	})
	require.NoError(t, err)

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSnapshot(runID, "contract", state))
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, runID, loaded.ID)
		assert.Equal(t, "contract", loaded.Graph)

		restored, err := loaded.Restore(schema)
		require.NoError(t, err, "Restore should decode persisted values")
		assert.True(t, state.Equal(restored), "restored state should equal the saved one")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		next, err := domain.Merge(state, domain.Partial{"total": 648})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, domain.NewSnapshot(runID, "contract", next)))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		restored, err := loaded.Restore(schema)
		require.NoError(t, err)
		total, err := restored.Number("total")
		require.NoError(t, err)
		assert.InDelta(t, 648, total, 1e-9)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSnapshot(runID, "contract", state)))

		err := store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, runID), "Delete of a missing id should succeed")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSnapshot(id1, "contract", state)))
		require.NoError(t, store.Save(ctx, domain.NewSnapshot(id2, "contract", state)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
