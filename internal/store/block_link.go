package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BlockLinkStore holds links between tasks and time blocks.
type BlockLinkStore struct {
	db DBTX
}

func NewBlockLinkStore(db DBTX) *BlockLinkStore {
	return &BlockLinkStore{db: db}
}

func (s *BlockLinkStore) WithTx(tx *sql.Tx) *BlockLinkStore {
	return &BlockLinkStore{db: tx}
}

func (s *BlockLinkStore) Link(ctx context.Context, taskID, blockID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_time_block_links (task_id, time_block_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (task_id, time_block_id) DO NOTHING`,
		taskID, blockID, utc(now),
	)
	if err != nil {
		return fmt.Errorf("link task to time block: %w", err)
	}
	return nil
}

func (s *BlockLinkStore) BlockIDsForTask(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time_block_id FROM task_time_block_links WHERE task_id = ? ORDER BY time_block_id`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task blocks: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan task blocks: %w", err)
	}
	return ids, nil
}

func (s *BlockLinkStore) TaskIDsForBlock(ctx context.Context, blockID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id FROM task_time_block_links WHERE time_block_id = ? ORDER BY task_id`,
		blockID,
	)
	if err != nil {
		return nil, fmt.Errorf("list block tasks: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan block tasks: %w", err)
	}
	return ids, nil
}

func (s *BlockLinkStore) UnlinkTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_time_block_links WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("unlink task: %w", err)
	}
	return nil
}

func (s *BlockLinkStore) UnlinkBlock(ctx context.Context, blockID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_time_block_links WHERE time_block_id = ?`, blockID)
	if err != nil {
		return fmt.Errorf("unlink time block: %w", err)
	}
	return nil
}

// CountTasksForBlock counts the block's remaining task associations. A
// task's state is not consulted; retiring a task drops its associations.
func (s *BlockLinkStore) CountTasksForBlock(ctx context.Context, blockID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_time_block_links WHERE time_block_id = ?`,
		blockID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count block tasks: %w", err)
	}
	return n, nil
}
