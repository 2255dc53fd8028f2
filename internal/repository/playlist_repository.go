package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// PlaylistRepo provides CRUD for playlists and their items. The cached
// duration_sec column is recomputed inside the same transaction as any
// item change so the bid charge formula never reads a stale total.
type PlaylistRepo struct {
	db *sql.DB
}

// NewPlaylistRepo returns a new PlaylistRepo bound to the given database.
func NewPlaylistRepo(db *sql.DB) *PlaylistRepo { return &PlaylistRepo{db: db} }

const playlistCols = `id, owner_id, name, description, duration_sec, created_at, updated_at`

func scanPlaylist(row interface{ Scan(dest ...any) error }) (*model.Playlist, error) {
	var p model.Playlist
	var desc sql.NullString
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &desc, &p.DurationSec, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		d := desc.String
		p.Description = &d
	}
	return &p, nil
}

// GetTx loads one playlist inside the transaction.
func (r *PlaylistRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Playlist, error) {
	const q = `SELECT ` + playlistCols + ` FROM playlists WHERE id = ?`
	return scanPlaylist(tx.QueryRowContext(ctx, q, id))
}

// Get loads one playlist outside any transaction.
func (r *PlaylistRepo) Get(ctx context.Context, id uint64) (*model.Playlist, error) {
	const q = `SELECT ` + playlistCols + ` FROM playlists WHERE id = ?`
	return scanPlaylist(r.db.QueryRowContext(ctx, q, id))
}

// ListByOwner returns all playlists of one owner, newest first.
func (r *PlaylistRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Playlist, error) {
	const q = `SELECT ` + playlistCols + ` FROM playlists WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a playlist with zero duration and populates the
// generated ID and timestamps.
func (r *PlaylistRepo) Create(ctx context.Context, p *model.Playlist) error {
	const q = `INSERT INTO playlists (owner_id, name, description, duration_sec) VALUES (?, ?, ?, 0)`
	res, err := r.db.ExecContext(ctx, q, p.OwnerID, p.Name, p.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.DurationSec = 0
	const sel = `SELECT created_at, updated_at FROM playlists WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, p.ID).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// Rename updates name and description after verifying ownership. It
// returns sql.ErrNoRows when the playlist does not exist and
// ErrForbidden when it belongs to someone else.
func (r *PlaylistRepo) Rename(ctx context.Context, id, ownerID uint64, name string, description *string) error {
	var actualOwner uint64
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM playlists WHERE id = ?`, id).Scan(&actualOwner)
	if err != nil {
		return err
	}
	if actualOwner != ownerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, description = ? WHERE id = ?`,
		name, description, id)
	return err
}

// Delete removes a playlist after verifying ownership. It returns
// ErrConflict when the playlist is still attached to a monitor or
// referenced by a bid.
func (r *PlaylistRepo) Delete(ctx context.Context, id, ownerID uint64) error {
	var actualOwner uint64
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM playlists WHERE id = ?`, id).Scan(&actualOwner)
	if err != nil {
		return err
	}
	if actualOwner != ownerID {
		return ErrForbidden
	}
	var refs int
	err = r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM monitors WHERE playlist_id = ?) +
		        (SELECT COUNT(*) FROM bids WHERE playlist_id = ?)`,
		id, id).Scan(&refs)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrConflict
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_items WHERE playlist_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Items returns the items of a playlist in position order.
func (r *PlaylistRepo) Items(ctx context.Context, playlistID uint64) ([]model.PlaylistItem, error) {
	const q = `SELECT id, playlist_id, name, duration_sec, position, created_at
	           FROM playlist_items WHERE playlist_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PlaylistItem, 0)
	for rows.Next() {
		var it model.PlaylistItem
		if err := rows.Scan(&it.ID, &it.PlaylistID, &it.Name, &it.DurationSec, &it.Position, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ReplaceItems swaps the whole item list of a playlist and recomputes
// the cached duration, all in one transaction. Ownership is verified
// under the same transaction.
func (r *PlaylistRepo) ReplaceItems(ctx context.Context, playlistID, ownerID uint64, items []model.PlaylistItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var actualOwner uint64
	if err := tx.QueryRowContext(ctx, `SELECT owner_id FROM playlists WHERE id = ? FOR UPDATE`, playlistID).Scan(&actualOwner); err != nil {
		return err
	}
	if actualOwner != ownerID {
		return ErrForbidden
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_items WHERE playlist_id = ?`, playlistID); err != nil {
		return err
	}
	var total int64
	for i := range items {
		items[i].PlaylistID = playlistID
		items[i].Position = uint32(i)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_items (playlist_id, name, duration_sec, position) VALUES (?, ?, ?, ?)`,
			playlistID, items[i].Name, items[i].DurationSec, items[i].Position)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		items[i].ID = uint64(id)
		total += items[i].DurationSec
	}
	if _, err := tx.ExecContext(ctx, `UPDATE playlists SET duration_sec = ? WHERE id = ?`, total, playlistID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
