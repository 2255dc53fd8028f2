package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// GroupCellRepo persists the parent/subordinate membership rows that
// place monitors on a group's (row, col) grid.
type GroupCellRepo struct {
	db *sql.DB
}

// NewGroupCellRepo returns a new GroupCellRepo bound to the given database.
func NewGroupCellRepo(db *sql.DB) *GroupCellRepo { return &GroupCellRepo{db: db} }

const cellCols = `id, parent_id, monitor_id, row_no, col_no, user_id, created_at`

// ListByParentTx returns all cells of a group parent in row-major order.
func (r *GroupCellRepo) ListByParentTx(ctx context.Context, tx *sql.Tx, parentID uint64) ([]model.MonitorGroupCell, error) {
	const q = `SELECT ` + cellCols + ` FROM monitor_group_cells
	           WHERE parent_id = ? ORDER BY row_no, col_no`
	rows, err := tx.QueryContext(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.MonitorGroupCell, 0)
	for rows.Next() {
		var c model.MonitorGroupCell
		if err := rows.Scan(&c.ID, &c.ParentID, &c.MonitorID, &c.Row, &c.Col, &c.UserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByMonitorTx returns the membership row of a subordinate monitor.
// A monitor belongs to at most one group, so the lookup is unique.
func (r *GroupCellRepo) GetByMonitorTx(ctx context.Context, tx *sql.Tx, monitorID uint64) (*model.MonitorGroupCell, error) {
	const q = `SELECT ` + cellCols + ` FROM monitor_group_cells WHERE monitor_id = ? LIMIT 1`
	var c model.MonitorGroupCell
	err := tx.QueryRowContext(ctx, q, monitorID).Scan(
		&c.ID, &c.ParentID, &c.MonitorID, &c.Row, &c.Col, &c.UserID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertTx registers a membership and populates the generated ID.
func (r *GroupCellRepo) InsertTx(ctx context.Context, tx *sql.Tx, c *model.MonitorGroupCell) error {
	const q = `INSERT INTO monitor_group_cells (parent_id, monitor_id, row_no, col_no, user_id)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, c.ParentID, c.MonitorID, c.Row, c.Col, c.UserID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// UpdatePositionTx moves a cell on the grid.
func (r *GroupCellRepo) UpdatePositionTx(ctx context.Context, tx *sql.Tx, id uint64, row, col uint32) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE monitor_group_cells SET row_no = ?, col_no = ? WHERE id = ?`,
		row, col, id)
	return err
}

// DeleteTx removes one membership row.
func (r *GroupCellRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM monitor_group_cells WHERE id = ?`, id)
	return err
}
