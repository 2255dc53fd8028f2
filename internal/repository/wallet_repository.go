package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// WalletRepo persists the append-only ledger. Entries are never updated
// or deleted; a balance is always the sum over all of a user's rows.
type WalletRepo struct {
	db *sql.DB
}

// NewWalletRepo returns a new WalletRepo bound to the given database.
func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// PostTx appends one ledger entry inside the transaction and populates
// the generated ID and timestamp.
func (r *WalletRepo) PostTx(ctx context.Context, tx *sql.Tx, e *model.WalletEntry) error {
	const q = `INSERT INTO wallet_entries (user_id, amount_kopecks, description, bid_id) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, e.UserID, e.AmountKopecks, e.Description, e.BidID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	const sel = `SELECT created_at FROM wallet_entries WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, e.ID).Scan(&e.CreatedAt)
}

// BalanceTx sums the user's entries inside the transaction, so a balance
// gate sees postings made earlier in the same unit.
func (r *WalletRepo) BalanceTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_kopecks), 0) FROM wallet_entries WHERE user_id = ?`,
		userID).Scan(&balance)
	return balance, err
}

// WalletBalance sums the user's entries outside any transaction.
func (r *WalletRepo) WalletBalance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_kopecks), 0) FROM wallet_entries WHERE user_id = ?`,
		userID).Scan(&balance)
	return balance, err
}

// WalletEntries returns a page of the user's statement, newest first.
func (r *WalletRepo) WalletEntries(ctx context.Context, userID uint64, limit, offset int) ([]model.WalletEntry, error) {
	const q = `SELECT id, user_id, amount_kopecks, description, bid_id, created_at
	           FROM wallet_entries WHERE user_id = ?
	           ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WalletEntry, 0)
	for rows.Next() {
		var e model.WalletEntry
		var bidID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.AmountKopecks, &e.Description, &bidID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if bidID.Valid {
			v := uint64(bidID.Int64)
			e.BidID = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
