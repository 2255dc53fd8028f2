package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// MetricsRepo computes the per-user dashboard snapshot. It satisfies
// the broadcast hub's read contract, so every committed transition can
// push fresh counters without holding a transaction open.
type MetricsRepo struct {
	db *sql.DB
}

// NewMetricsRepo returns a new MetricsRepo bound to the given database.
func NewMetricsRepo(db *sql.DB) *MetricsRepo { return &MetricsRepo{db: db} }

// MetricsFor assembles the user's counters in one round trip.
func (r *MetricsRepo) MetricsFor(ctx context.Context, userID uint64) (*model.Metrics, error) {
	const q = `SELECT
	  (SELECT COUNT(*) FROM monitors WHERE owner_id = ?),
	  (SELECT COUNT(*) FROM monitors WHERE owner_id = ? AND status = 'online'),
	  (SELECT COUNT(*) FROM bids WHERE (buyer_id = ? OR user_id = ?) AND hide = FALSE),
	  (SELECT COUNT(*) FROM bids WHERE seller_id = ? AND hide = FALSE),
	  (SELECT COUNT(*) FROM bids WHERE seller_id = ? AND hide = FALSE AND approved = 'NOT_PROCESSED'),
	  (SELECT COALESCE(SUM(amount_kopecks), 0) FROM wallet_entries WHERE user_id = ?)`
	var m model.Metrics
	err := r.db.QueryRowContext(ctx, q,
		userID, userID, userID, userID, userID, userID, userID).Scan(
		&m.Monitors, &m.MonitorsOnline, &m.BidsOutgoing, &m.BidsIncoming, &m.BidsPending, &m.BalanceKopecks)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// WalletBalance sums the user's ledger entries.
func (r *MetricsRepo) WalletBalance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_kopecks), 0) FROM wallet_entries WHERE user_id = ?`,
		userID).Scan(&balance)
	return balance, err
}
