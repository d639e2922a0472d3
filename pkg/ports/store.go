package ports

import (
	"context"

	"github.com/aretw0/stategraph/pkg/domain"
)

// RunStore defines the interface for persisting state snapshots.
// Sessions use it to carry a conversation across runs.
type RunStore interface {
	// Save persists the snapshot under snap.ID, replacing any previous one.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves the snapshot for id.
	// Returns domain.ErrSessionNotFound if it does not exist.
	Load(ctx context.Context, id string) (*domain.Snapshot, error)

	// Delete removes the snapshot for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of every stored snapshot.
	List(ctx context.Context) ([]string, error)
}
