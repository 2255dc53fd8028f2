package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

// MonitorRepo provides CRUD operations for monitors. Mutations run
// inside a caller-owned transaction; list/search reads run on the pool.
type MonitorRepo struct {
	db *sql.DB
}

// NewMonitorRepo returns a new MonitorRepo bound to the given database.
func NewMonitorRepo(db *sql.DB) *MonitorRepo { return &MonitorRepo{db: db} }

const monitorCols = `id, owner_id, name, status, multiple, playlist_id,
       group_online_monitors, width, height, price_1s, min_warranty,
       created_at, updated_at`

func scanMonitor(row interface{ Scan(dest ...any) error }) (*model.Monitor, error) {
	var m model.Monitor
	var playlistID sql.NullInt64
	var width, height sql.NullInt32
	err := row.Scan(
		&m.ID, &m.OwnerID, &m.Name, &m.Status, &m.Multiple, &playlistID,
		&m.GroupOnlineMonitors, &width, &height, &m.Price1s, &m.MinWarranty,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if playlistID.Valid {
		pid := uint64(playlistID.Int64)
		m.PlaylistID = &pid
	}
	if width.Valid {
		w := uint32(width.Int32)
		m.Width = &w
	}
	if height.Valid {
		h := uint32(height.Int32)
		m.Height = &h
	}
	return &m, nil
}

// GetTx loads one monitor inside the transaction. Returns sql.ErrNoRows
// when absent.
func (r *MonitorRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Monitor, error) {
	const q = `SELECT ` + monitorCols + ` FROM monitors WHERE id = ?`
	return scanMonitor(tx.QueryRowContext(ctx, q, id))
}

// InsertTx inserts a monitor and populates the generated ID plus the
// timestamp defaults on the provided record.
func (r *MonitorRepo) InsertTx(ctx context.Context, tx *sql.Tx, m *model.Monitor) error {
	const q = `INSERT INTO monitors
	           (owner_id, name, status, multiple, playlist_id, width, height, price_1s, min_warranty)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		m.OwnerID, m.Name, m.Status, m.Multiple, m.PlaylistID,
		m.Width, m.Height, m.Price1s, m.MinWarranty)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM monitors WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, m.ID).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// UpdateFieldsTx applies a partial update. Only non-nil patch fields
// touch their columns; SetPlaylist toggles the playlist column even when
// the new value is NULL.
func (r *MonitorRepo) UpdateFieldsTx(ctx context.Context, tx *sql.Tx, id uint64, p service.MonitorPatch) error {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Multiple != nil {
		sets = append(sets, "multiple = ?")
		args = append(args, *p.Multiple)
	}
	if p.Width != nil {
		sets = append(sets, "width = ?")
		args = append(args, *p.Width)
	}
	if p.Height != nil {
		sets = append(sets, "height = ?")
		args = append(args, *p.Height)
	}
	if p.Price1s != nil {
		sets = append(sets, "price_1s = ?")
		args = append(args, *p.Price1s)
	}
	if p.MinWarranty != nil {
		sets = append(sets, "min_warranty = ?")
		args = append(args, *p.MinWarranty)
	}
	if p.SetPlaylist {
		sets = append(sets, "playlist_id = ?")
		args = append(args, p.PlaylistID)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	q := "UPDATE monitors SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// SetStatusTx writes the online/offline state.
func (r *MonitorRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, st model.MonitorStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE monitors SET status = ? WHERE id = ?`, st, id)
	return err
}

// SetMultipleTx writes the multiplicity mode.
func (r *MonitorRepo) SetMultipleTx(ctx context.Context, tx *sql.Tx, id uint64, mm model.MonitorMultiple) error {
	_, err := tx.ExecContext(ctx, `UPDATE monitors SET multiple = ? WHERE id = ?`, mm, id)
	return err
}

// SetPlaylistTx attaches or detaches (nil) the playlist.
func (r *MonitorRepo) SetPlaylistTx(ctx context.Context, tx *sql.Tx, id uint64, playlistID *uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE monitors SET playlist_id = ? WHERE id = ?`, playlistID, id)
	return err
}

// SetGroupOnlineTx writes the online-cell counter of a group parent.
func (r *MonitorRepo) SetGroupOnlineTx(ctx context.Context, tx *sql.Tx, id uint64, n uint32) error {
	_, err := tx.ExecContext(ctx, `UPDATE monitors SET group_online_monitors = ? WHERE id = ?`, n, id)
	return err
}

// DeleteTx removes the monitor row and reports affected rows.
func (r *MonitorRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Get loads one monitor outside any transaction.
func (r *MonitorRepo) Get(ctx context.Context, id uint64) (*model.Monitor, error) {
	const q = `SELECT ` + monitorCols + ` FROM monitors WHERE id = ?`
	return scanMonitor(r.db.QueryRowContext(ctx, q, id))
}

// ListByOwner returns all monitors of one owner, newest first.
func (r *MonitorRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Monitor, error) {
	const q = `SELECT ` + monitorCols + ` FROM monitors WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, ownerID)
}

// MonitorFilter narrows the public catalogue search. Zero values mean
// "no constraint".
type MonitorFilter struct {
	Query      string
	OnlineOnly bool
	MaxPrice1s int64
	Limit      int
	Offset     int
}

// Search returns advertiser-facing catalogue rows. SUBORDINATE cells are
// excluded: advertisers bid on SINGLE monitors or on whole groups.
func (r *MonitorRepo) Search(ctx context.Context, f MonitorFilter) ([]model.Monitor, error) {
	q := `SELECT ` + monitorCols + ` FROM monitors WHERE multiple <> 'SUBORDINATE'`
	args := make([]any, 0, 4)
	if f.Query != "" {
		q += " AND name LIKE ?"
		args = append(args, "%"+f.Query+"%")
	}
	if f.OnlineOnly {
		q += " AND status = 'online'"
	}
	if f.MaxPrice1s > 0 {
		q += " AND price_1s <= ?"
		args = append(args, f.MaxPrice1s)
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	q += " ORDER BY status DESC, price_1s ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)
	return r.list(ctx, q, args...)
}

// ListFavorites returns the monitors a user marked as favorite.
func (r *MonitorRepo) ListFavorites(ctx context.Context, userID uint64) ([]model.Monitor, error) {
	const q = `SELECT m.id, m.owner_id, m.name, m.status, m.multiple, m.playlist_id,
	                  m.group_online_monitors, m.width, m.height, m.price_1s, m.min_warranty,
	                  m.created_at, m.updated_at
	           FROM monitors m
	           JOIN monitor_favorites f ON f.monitor_id = m.id
	           WHERE f.user_id = ?
	           ORDER BY f.created_at DESC`
	return r.list(ctx, q, userID)
}

func (r *MonitorRepo) list(ctx context.Context, q string, args ...any) ([]model.Monitor, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Monitor, 0)
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
