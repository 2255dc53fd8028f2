package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// BidService is the bid lifecycle engine.  It validates monitor and
// playlist ownership, computes and settles charges through the wallet
// ledger, fans a single logical bid out across grouped monitors and
// emits realtime/notification events after each transaction commits.
type BidService struct {
	store     Store
	partition Partitioner
	notifier  Notifier
	broadcast Broadcaster
	// commission is the percentage retained by the platform on every
	// approved non-zero-sum bid.  It is never refunded to either party.
	commission int64
}

// NewBidService constructs a BidService.  All dependencies must be
// non-nil; commissionPercent must be in [0, 100].
func NewBidService(store Store, partition Partitioner, notifier Notifier, broadcast Broadcaster, commissionPercent int64) *BidService {
	if store == nil || partition == nil || notifier == nil || broadcast == nil {
		panic("nil dependency passed to NewBidService")
	}
	if commissionPercent < 0 || commissionPercent > 100 {
		panic("commission percent out of range")
	}
	return &BidService{
		store:     store,
		partition: partition,
		notifier:  notifier,
		broadcast: broadcast,
		commission: commissionPercent,
	}
}

// CreateBidInput carries the caller-supplied fields for a batch create.
// One bid is created per requested monitor; the batch is all-or-nothing.
type CreateBidInput struct {
	PlaylistID     uint64
	MonitorIDs     []uint64
	DateWhen       time.Time
	DateBefore     *time.Time
	PlaylistChange bool
}

// UpdateBidInput is the partial update accepted by Update.
type UpdateBidInput struct {
	Approved       *model.BidApproved
	Status         *model.BidStatus
	Hide           *bool
	PlaylistChange *bool
}

// sideEffects accumulates broadcast/notification work discovered inside
// a transaction.  It is flushed only after the transaction has
// committed, so broadcasts always read post-commit state and never hold
// the transaction open.
type sideEffects struct {
	changed []*model.Bid
	removed []*model.Bid
	wallet  []uint64
	metrics []uint64
	pending []*model.Bid
	decided []*model.Bid
}

func (fx *sideEffects) walletChanged(userID uint64)  { fx.wallet = append(fx.wallet, userID) }
func (fx *sideEffects) metricsChanged(userID uint64) { fx.metrics = append(fx.metrics, userID) }

// flush emits everything collected, in order: ledger-affected wallet
// pushes, bid broadcasts, metrics, then mail notifications.  Failures
// inside the broadcaster/notifier are their own responsibility.
func (s *BidService) flush(ctx context.Context, fx *sideEffects) {
	for _, uid := range fx.wallet {
		s.broadcast.WalletChanged(uid)
	}
	for _, b := range fx.changed {
		s.broadcast.BidChanged(b)
	}
	for _, b := range fx.removed {
		s.broadcast.BidRemoved(b)
	}
	for _, uid := range fx.metrics {
		s.broadcast.MetricsChanged(uid)
	}
	for _, b := range fx.pending {
		s.notifier.BidPending(ctx, b)
	}
	for _, b := range fx.decided {
		s.notifier.BidDecided(ctx, b)
	}
}

// Create places one bid per requested monitor inside a single
// transaction.  A bid against the actor's own monitor is approved
// immediately and costs nothing; a bid against a third-party monitor is
// left NOT_PROCESSED and debits the buyer's wallet for the computed
// charge.  Any monitor-level failure aborts the whole batch.
func (s *BidService) Create(ctx context.Context, actor Actor, in CreateBidInput) ([]*model.Bid, error) {
	if len(in.MonitorIDs) == 0 {
		return nil, BadRequest("monitor list is empty")
	}
	if in.DateWhen.IsZero() {
		return nil, BadRequest("date_when is required")
	}
	var created []*model.Bid
	fx := &sideEffects{}
	err := s.store.InTx(ctx, func(tx Tx) error {
		pl, err := tx.PlaylistByID(ctx, in.PlaylistID)
		if err == ErrNoRow {
			return BadRequest("playlist %d not found", in.PlaylistID)
		}
		if err != nil {
			return err
		}
		if !actor.Admin() && pl.OwnerID != actor.ID {
			return NotFound("playlist %d not found", in.PlaylistID)
		}
		if pl.DurationSec <= 0 {
			return BadRequest("playlist %d has no playable duration", in.PlaylistID)
		}
		for _, mid := range in.MonitorIDs {
			m, err := tx.MonitorByID(ctx, mid)
			if err == ErrNoRow {
				return BadRequest("monitor %d not found", mid)
			}
			if err != nil {
				return err
			}
			bid, err := s.createOne(ctx, tx, actor, m, pl, in, fx)
			if err != nil {
				return err
			}
			created = append(created, bid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, fx)
	return created, nil
}

// createOne performs the per-monitor slice of a batch create within the
// caller's transaction: attach the playlist, decide approval, compute
// and debit the charge, insert the bid and either fan out (self-owned)
// or queue a seller notification.
func (s *BidService) createOne(ctx context.Context, tx Tx, actor Actor, m *model.Monitor, pl *model.Playlist, in CreateBidInput, fx *sideEffects) (*model.Bid, error) {
	plID := pl.ID
	if err := tx.SetMonitorPlaylist(ctx, m.ID, &plID); err != nil {
		return nil, err
	}
	selfOwned := actor.ID == m.OwnerID
	bid := &model.Bid{
		SellerID:       m.OwnerID,
		UserID:         actor.ID,
		MonitorID:      m.ID,
		PlaylistID:     pl.ID,
		Approved:       model.ApprovedNotProcessed,
		Status:         model.BidWaiting,
		DateWhen:       in.DateWhen,
		DateBefore:     in.DateBefore,
		PlaylistChange: in.PlaylistChange,
	}
	if selfOwned {
		bid.Approved = model.ApprovedAllowed
		bid.Status = model.BidOK
	} else {
		buyerID := actor.ID
		bid.BuyerID = &buyerID
		days := daysInWindow(in.DateWhen, in.DateBefore, clockNow())
		bid.SumKopecks = chargeSum(m.Price1s, m.MinWarranty, days, pl.DurationSec)
		if bid.SumKopecks > 0 {
			balance, err := tx.WalletBalance(ctx, actor.ID)
			if err != nil {
				return nil, err
			}
			if bid.SumKopecks > balance {
				return nil, NotAcceptable("insufficient funds: bid costs %d, balance is %d", bid.SumKopecks, balance)
			}
		}
	}
	if err := tx.InsertBid(ctx, bid); err != nil {
		return nil, err
	}
	if bid.SumKopecks != 0 {
		bidID := bid.ID
		entry := &model.WalletEntry{
			UserID:        actor.ID,
			AmountKopecks: -bid.SumKopecks,
			Description:   fmt.Sprintf("bid #%d: %s on %s", bid.Seq, pl.Name, m.Name),
			BidID:         &bidID,
		}
		if err := tx.PostWalletEntry(ctx, entry); err != nil {
			return nil, err
		}
		fx.walletChanged(actor.ID)
	}
	if bid.Approved == model.ApprovedAllowed {
		if err := s.postCreate(ctx, tx, bid, m, fx); err != nil {
			return nil, err
		}
	} else {
		fx.pending = append(fx.pending, bid)
	}
	fx.metricsChanged(actor.ID)
	if !selfOwned {
		fx.metricsChanged(m.OwnerID)
	}
	return bid, nil
}

// Update applies a partial update to a bid and runs the side effects of
// the new approval value.  Credit/refund and fan-out run only on the
// transition into ALLOWED/DENIED; repeating the same approval value is a
// no-op financially.  An administrator reset to NOT_PROCESSED only
// notifies the seller.
func (s *BidService) Update(ctx context.Context, actor Actor, bidID uint64, in UpdateBidInput) (*model.Bid, error) {
	var out *model.Bid
	fx := &sideEffects{}
	err := s.store.InTx(ctx, func(tx Tx) error {
		prev, err := tx.BidByID(ctx, bidID, RelationMin)
		if err == ErrNoRow {
			return NotFound("bid %d not found", bidID)
		}
		if err != nil {
			return err
		}
		if in.Approved != nil && !actor.Admin() && actor.ID != prev.SellerID {
			return NotFound("bid %d not found", bidID)
		}
		affected, err := tx.UpdateBid(ctx, bidID, BidPatch{
			Approved:       in.Approved,
			Status:         in.Status,
			Hide:           in.Hide,
			PlaylistChange: in.PlaylistChange,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return NotFound("bid %d not found", bidID)
		}
		// Side effects need the full buyer/seller/actor graph; a plain
		// field update does not.
		rel := RelationMin
		if in.Approved != nil && *in.Approved != model.ApprovedNotProcessed {
			rel = RelationSide
		}
		bid, err := tx.BidByID(ctx, bidID, rel)
		if err != nil {
			return err
		}
		switch bid.Approved {
		case model.ApprovedNotProcessed:
			if in.Approved != nil {
				fx.pending = append(fx.pending, bid)
			}
		case model.ApprovedAllowed:
			if prev.Approved != model.ApprovedAllowed {
				if err := s.settleApproval(ctx, tx, bid, fx); err != nil {
					return err
				}
				m, err := tx.MonitorByID(ctx, bid.MonitorID)
				if err == ErrNoRow {
					return Internal("bid %d references missing monitor %d", bid.ID, bid.MonitorID)
				}
				if err != nil {
					return err
				}
				if err := s.postCreate(ctx, tx, bid, m, fx); err != nil {
					return err
				}
				fx.decided = append(fx.decided, bid)
			}
		case model.ApprovedDenied:
			if prev.Approved != model.ApprovedDenied {
				if err := s.settleDenial(ctx, tx, bid, fx); err != nil {
					return err
				}
				if err := s.preDelete(ctx, tx, bid, false, fx); err != nil {
					return err
				}
				fx.decided = append(fx.decided, bid)
			}
		}
		out = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, fx)
	return out, nil
}

// settleApproval posts the seller's credit: the original charge minus
// the platform commission.  The commission slice is simply never
// re-credited to anyone.
func (s *BidService) settleApproval(ctx context.Context, tx Tx, bid *model.Bid, fx *sideEffects) error {
	if bid.SumKopecks == 0 {
		return nil
	}
	if bid.Seller == nil {
		return Internal("bid %d is missing its seller relation", bid.ID)
	}
	credit := bid.SumKopecks * (100 - s.commission) / 100
	bidID := bid.ID
	entry := &model.WalletEntry{
		UserID:        bid.SellerID,
		AmountKopecks: credit,
		Description:   fmt.Sprintf("bid #%d approved, payout minus %d%% commission", bid.Seq, s.commission),
		BidID:         &bidID,
	}
	if err := tx.PostWalletEntry(ctx, entry); err != nil {
		return err
	}
	fx.walletChanged(bid.SellerID)
	fx.metricsChanged(bid.SellerID)
	return nil
}

// settleDenial refunds the full charge to the buyer, when one exists.
func (s *BidService) settleDenial(ctx context.Context, tx Tx, bid *model.Bid, fx *sideEffects) error {
	if bid.SumKopecks == 0 || bid.BuyerID == nil {
		return nil
	}
	if bid.Buyer == nil {
		return Internal("bid %d is missing its buyer relation", bid.ID)
	}
	bidID := bid.ID
	entry := &model.WalletEntry{
		UserID:        *bid.BuyerID,
		AmountKopecks: bid.SumKopecks,
		Description:   fmt.Sprintf("bid #%d denied, refund", bid.Seq),
		BidID:         &bidID,
	}
	if err := tx.PostWalletEntry(ctx, entry); err != nil {
		return err
	}
	fx.walletChanged(*bid.BuyerID)
	fx.metricsChanged(*bid.BuyerID)
	return nil
}

// Delete runs the pre-delete fan-out with physical deletion enabled and
// removes the bid row.  The returned count is zero when a concurrent
// delete won the race.
func (s *BidService) Delete(ctx context.Context, actor Actor, bidID uint64) (int64, error) {
	var affected int64
	fx := &sideEffects{}
	err := s.store.InTx(ctx, func(tx Tx) error {
		bid, err := tx.BidByID(ctx, bidID, RelationMin)
		if err == ErrNoRow {
			return NotFound("bid %d not found", bidID)
		}
		if err != nil {
			return err
		}
		if !actor.Admin() && actor.ID != bid.SellerID && (bid.BuyerID == nil || *bid.BuyerID != actor.ID) {
			return NotFound("bid %d not found", bidID)
		}
		if err := s.preDelete(ctx, tx, bid, true, fx); err != nil {
			return err
		}
		affected, err = tx.DeleteBid(ctx, bidID)
		if err != nil {
			return err
		}
		fx.metricsChanged(bid.SellerID)
		if bid.BuyerID != nil {
			fx.metricsChanged(*bid.BuyerID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.flush(ctx, fx)
	return affected, nil
}

// postCreate is the fan-out hook invoked when a bid becomes ALLOWED (or
// is created pre-approved).  For a SINGLE monitor it only records a bid
// broadcast.  For a group monitor it partitions the subordinate cells
// and inserts one hidden sub-bid per cell; all cell inserts succeed or
// the whole fan-out aborts with the surrounding transaction.
func (s *BidService) postCreate(ctx context.Context, tx Tx, bid *model.Bid, m *model.Monitor, fx *sideEffects) error {
	if !m.Multiple.IsGroup() {
		fx.changed = append(fx.changed, bid)
		return nil
	}
	cells, err := tx.GroupCells(ctx, m.ID)
	if err != nil {
		return err
	}
	pl, err := tx.PlaylistByID(ctx, bid.PlaylistID)
	if err == ErrNoRow {
		return Internal("bid %d references missing playlist %d", bid.ID, bid.PlaylistID)
	}
	if err != nil {
		return err
	}
	targets, err := s.partition.Partition(m, cells, pl)
	if err != nil {
		return NotAcceptable("group %d cannot be partitioned: %v", m.ID, err)
	}
	parentID := bid.ID
	for _, cell := range targets {
		sub := &model.Bid{
			BuyerID:        bid.BuyerID,
			SellerID:       bid.SellerID,
			UserID:         bid.UserID,
			MonitorID:      cell.MonitorID,
			PlaylistID:     bid.PlaylistID,
			ParentBidID:    &parentID,
			Hide:           true,
			Approved:       bid.Approved,
			Status:         bid.Status,
			DateWhen:       bid.DateWhen,
			DateBefore:     bid.DateBefore,
			PlaylistChange: bid.PlaylistChange,
			SumKopecks:     bid.SumKopecks,
		}
		if err := tx.InsertBid(ctx, sub); err != nil {
			return err
		}
		plID := bid.PlaylistID
		if err := tx.SetMonitorPlaylist(ctx, cell.MonitorID, &plID); err != nil {
			return err
		}
		fx.changed = append(fx.changed, sub)
	}
	return nil
}

// preDelete is the removal hook invoked on denial or physical deletion.
// It owns the removal broadcast for the bid itself, emitted exactly
// once per path. For a group monitor it additionally loads every
// sub-bid fanned out from this bid, records a removal broadcast for
// each and, only when physical deletion was requested, clears SCALING
// cell playlists and deletes the sub-bid rows.
func (s *BidService) preDelete(ctx context.Context, tx Tx, bid *model.Bid, physical bool, fx *sideEffects) error {
	m, err := tx.MonitorByID(ctx, bid.MonitorID)
	if err == ErrNoRow {
		// Monitor already cascaded away; nothing to fan out over.
		fx.removed = append(fx.removed, bid)
		return nil
	}
	if err != nil {
		return err
	}
	if !m.Multiple.IsGroup() {
		fx.removed = append(fx.removed, bid)
		return nil
	}
	subs, err := tx.BidsByParent(ctx, bid.ID)
	if err != nil {
		return err
	}
	for i := range subs {
		sub := &subs[i]
		fx.removed = append(fx.removed, sub)
		if !physical {
			continue
		}
		if m.Multiple == model.MultipleScaling {
			if err := tx.SetMonitorPlaylist(ctx, sub.MonitorID, nil); err != nil {
				return err
			}
		}
		if _, err := tx.DeleteBid(ctx, sub.ID); err != nil {
			return err
		}
	}
	fx.removed = append(fx.removed, bid)
	return nil
}

// daysInWindow counts calendar days covered by [when, before], both
// truncated to UTC dates; an open-ended window is measured up to now.
// The result is never below one day.
func daysInWindow(when time.Time, before *time.Time, now time.Time) int64 {
	end := now
	if before != nil {
		end = *before
	}
	w := dateOf(when)
	e := dateOf(end)
	days := int64(e.Sub(w).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// chargeSum prices a rental window: the playlist loops
// days*86400/duration times, and every loop carries minWarranty
// guaranteed seconds billed at price1s kopecks each.  Integer
// arithmetic throughout; remainders are dropped in the buyer's favor.
func chargeSum(price1s, minWarranty, days, playlistDurationSec int64) int64 {
	if playlistDurationSec <= 0 {
		return 0
	}
	loops := days * 86400 / playlistDurationSec
	return price1s * minWarranty * loops
}
