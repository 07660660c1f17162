// Package orphan decides the fate of calendar blocks that lose a task
// association.
package orphan

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

// ShouldDelete reports whether a block must be removed after losing a task
// association. Only blocks produced as a side effect of a task are ever
// removed, and only once nothing else references them.
func ShouldDelete(remaining int, provenance model.SourceType) bool {
	return remaining == 0 && provenance == model.SourceFromTask
}

// Resolver applies ShouldDelete to blocks inside the caller's transaction.
type Resolver struct {
	blocks *store.TimeBlockStore
	links  *store.BlockLinkStore
}

// NewResolver binds a resolver to stores that share one transaction.
func NewResolver(blocks *store.TimeBlockStore, links *store.BlockLinkStore) *Resolver {
	return &Resolver{blocks: blocks, links: links}
}

// Resolve evaluates each block and soft-deletes the ones flagged. It returns
// the ids of the blocks it deleted.
func (r *Resolver) Resolve(ctx context.Context, blockIDs []string, now time.Time) ([]string, error) {
	var deleted []string
	for _, id := range blockIDs {
		block, err := r.blocks.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve orphan %s: %w", id, err)
		}
		if block == nil || block.IsDeleted {
			continue
		}

		remaining, err := r.links.CountTasksForBlock(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve orphan %s: %w", id, err)
		}
		if !ShouldDelete(remaining, block.SourceType) {
			continue
		}

		if err := r.links.UnlinkBlock(ctx, id); err != nil {
			return nil, fmt.Errorf("resolve orphan %s: %w", id, err)
		}
		if err := r.blocks.SoftDelete(ctx, id, now); err != nil {
			return nil, fmt.Errorf("resolve orphan %s: %w", id, err)
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}
