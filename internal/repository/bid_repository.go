package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

// BidRepo persists bids. Mutations run inside a caller-owned
// transaction; the listing reads run on the pool and always exclude
// hidden fan-out sub-bids.
type BidRepo struct {
	db *sql.DB
}

// NewBidRepo returns a new BidRepo bound to the given database.
func NewBidRepo(db *sql.DB) *BidRepo { return &BidRepo{db: db} }

const bidCols = `b.id, b.seq, b.buyer_id, b.seller_id, b.user_id, b.monitor_id,
       b.playlist_id, b.parent_bid_id, b.hide, b.approved, b.status,
       b.date_when, b.date_before, b.playlist_change, b.sum_kopecks,
       b.created_at, b.updated_at`

func scanBid(row interface{ Scan(dest ...any) error }) (*model.Bid, error) {
	var b model.Bid
	var buyerID, parentID sql.NullInt64
	var before sql.NullTime
	err := row.Scan(
		&b.ID, &b.Seq, &buyerID, &b.SellerID, &b.UserID, &b.MonitorID,
		&b.PlaylistID, &parentID, &b.Hide, &b.Approved, &b.Status,
		&b.DateWhen, &before, &b.PlaylistChange, &b.SumKopecks,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if buyerID.Valid {
		v := uint64(buyerID.Int64)
		b.BuyerID = &v
	}
	if parentID.Valid {
		v := uint64(parentID.Int64)
		b.ParentBidID = &v
	}
	if before.Valid {
		t := before.Time
		b.DateBefore = &t
	}
	return &b, nil
}

// InsertTx inserts a bid. The display sequence number is allocated under
// a locking read of the current maximum so that concurrent creators
// cannot observe the same value.
func (r *BidRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Bid) error {
	const seqQ = `SELECT COALESCE(MAX(seq), 0) + 1 FROM bids FOR UPDATE`
	if err := tx.QueryRowContext(ctx, seqQ).Scan(&b.Seq); err != nil {
		return err
	}
	const q = `INSERT INTO bids
	           (seq, buyer_id, seller_id, user_id, monitor_id, playlist_id, parent_bid_id,
	            hide, approved, status, date_when, date_before, playlist_change, sum_kopecks)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.Seq, b.BuyerID, b.SellerID, b.UserID, b.MonitorID, b.PlaylistID, b.ParentBidID,
		b.Hide, b.Approved, b.Status, b.DateWhen.UTC(), b.DateBefore, b.PlaylistChange, b.SumKopecks)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM bids WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// UpdateTx applies a partial update and reports affected rows. Nil patch
// fields leave their columns untouched.
func (r *BidRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, p service.BidPatch) (int64, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if p.Approved != nil {
		sets = append(sets, "approved = ?")
		args = append(args, *p.Approved)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.Hide != nil {
		sets = append(sets, "hide = ?")
		args = append(args, *p.Hide)
	}
	if p.PlaylistChange != nil {
		sets = append(sets, "playlist_change = ?")
		args = append(args, *p.PlaylistChange)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, id)
	q := "UPDATE bids SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetTx loads one bid inside the transaction. RelationSide additionally
// loads the buyer, seller and acting user rows needed for settlement
// side effects.
func (r *BidRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, rel service.Relation) (*model.Bid, error) {
	const q = `SELECT ` + bidCols + ` FROM bids b WHERE b.id = ?`
	b, err := scanBid(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if rel != service.RelationSide {
		return b, nil
	}
	if b.BuyerID != nil {
		if b.Buyer, err = getUserTx(ctx, tx, *b.BuyerID); err != nil {
			return nil, err
		}
	}
	if b.Seller, err = getUserTx(ctx, tx, b.SellerID); err != nil {
		return nil, err
	}
	if b.Actor, err = getUserTx(ctx, tx, b.UserID); err != nil {
		return nil, err
	}
	return b, nil
}

func getUserTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.User, error) {
	var u model.User
	err := tx.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, is_active, created_at, updated_at FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByParentTx returns the hidden sub-bids fanned out under a group
// parent bid.
func (r *BidRepo) ListByParentTx(ctx context.Context, tx *sql.Tx, parentID uint64) ([]model.Bid, error) {
	const q = `SELECT ` + bidCols + ` FROM bids b WHERE b.parent_bid_id = ? ORDER BY b.id`
	rows, err := tx.QueryContext(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBids(rows)
}

// DeleteTx removes a bid row and reports affected rows.
func (r *BidRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListOutgoing returns the bids a user placed as buyer or created as
// actor, hidden sub-bids excluded, newest first.
func (r *BidRepo) ListOutgoing(ctx context.Context, userID uint64, limit, offset int) ([]model.Bid, error) {
	const q = `SELECT ` + bidCols + ` FROM bids b
	           WHERE (b.buyer_id = ? OR b.user_id = ?) AND b.hide = FALSE
	           ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`
	return r.listPage(ctx, q, userID, userID, limit, offset)
}

// ListIncoming returns the bids targeting a seller's monitors, hidden
// sub-bids excluded, newest first.
func (r *BidRepo) ListIncoming(ctx context.Context, sellerID uint64, limit, offset int) ([]model.Bid, error) {
	const q = `SELECT ` + bidCols + ` FROM bids b
	           WHERE b.seller_id = ? AND b.hide = FALSE
	           ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`
	return r.listPage(ctx, q, sellerID, limit, offset)
}

// ListPending returns NOT_PROCESSED incoming bids awaiting the seller's
// decision, oldest first so the queue drains in order.
func (r *BidRepo) ListPending(ctx context.Context, sellerID uint64, limit, offset int) ([]model.Bid, error) {
	const q = `SELECT ` + bidCols + ` FROM bids b
	           WHERE b.seller_id = ? AND b.hide = FALSE AND b.approved = 'NOT_PROCESSED'
	           ORDER BY b.created_at ASC, b.id ASC LIMIT ? OFFSET ?`
	return r.listPage(ctx, q, sellerID, limit, offset)
}

func (r *BidRepo) listPage(ctx context.Context, q string, args ...any) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBids(rows)
}

func collectBids(rows *sql.Rows) ([]model.Bid, error) {
	out := make([]model.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Get loads one bid outside any transaction, without relations.
func (r *BidRepo) Get(ctx context.Context, id uint64) (*model.Bid, error) {
	const q = `SELECT ` + bidCols + ` FROM bids b WHERE b.id = ?`
	return scanBid(r.db.QueryRowContext(ctx, q, id))
}
