package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// FavoriteRepo persists the user/monitor favorite join rows.
type FavoriteRepo struct {
	db *sql.DB
}

// NewFavoriteRepo returns a new FavoriteRepo bound to the given database.
func NewFavoriteRepo(db *sql.DB) *FavoriteRepo { return &FavoriteRepo{db: db} }

// ExistsTx reports whether the favorite row exists.
func (r *FavoriteRepo) ExistsTx(ctx context.Context, tx *sql.Tx, userID, monitorID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM monitor_favorites WHERE user_id = ? AND monitor_id = ? LIMIT 1`,
		userID, monitorID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertTx adds a favorite row and populates the generated ID.
func (r *FavoriteRepo) InsertTx(ctx context.Context, tx *sql.Tx, f *model.MonitorFavorite) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO monitor_favorites (user_id, monitor_id) VALUES (?, ?)`,
		f.UserID, f.MonitorID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	return nil
}

// DeleteTx removes the favorite row and reports affected rows.
func (r *FavoriteRepo) DeleteTx(ctx context.Context, tx *sql.Tx, userID, monitorID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM monitor_favorites WHERE user_id = ? AND monitor_id = ?`,
		userID, monitorID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
