package service

import (
	"context"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// WalletService exposes the ledger to callers.  Postings created by the
// bid engine go through Tx.PostWalletEntry directly; this service covers
// the standalone operations: balance reads, statement history and the
// administrative top-up.
type WalletService struct {
	store     Store
	reader    WalletReader
	broadcast Broadcaster
}

// WalletReader serves the read-only ledger queries that do not need a
// transaction of their own.
type WalletReader interface {
	WalletEntries(ctx context.Context, userID uint64, limit, offset int) ([]model.WalletEntry, error)
	WalletBalance(ctx context.Context, userID uint64) (int64, error)
}

// NewWalletService constructs a WalletService.
func NewWalletService(store Store, reader WalletReader, broadcast Broadcaster) *WalletService {
	if store == nil || reader == nil || broadcast == nil {
		panic("nil dependency passed to NewWalletService")
	}
	return &WalletService{store: store, reader: reader, broadcast: broadcast}
}

// Balance returns the current balance: the signed sum of all ledger
// entries for the user.
func (s *WalletService) Balance(ctx context.Context, userID uint64) (int64, error) {
	return s.reader.WalletBalance(ctx, userID)
}

// History returns a page of ledger entries, newest first.
func (s *WalletService) History(ctx context.Context, userID uint64, limit, offset int) ([]model.WalletEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.reader.WalletEntries(ctx, userID, limit, offset)
}

// TopUp posts an administrative credit (or correction, when the amount
// is negative) to a user's ledger.  Only administrators and accountants
// may call it.
func (s *WalletService) TopUp(ctx context.Context, actor Actor, userID uint64, amount int64, description string) (*model.WalletEntry, error) {
	if !actor.Admin() && actor.Role != model.RoleAccountant {
		return nil, NotFound("wallet %d not found", userID)
	}
	if amount == 0 {
		return nil, BadRequest("top-up amount must be non-zero")
	}
	if description == "" {
		description = "manual adjustment"
	}
	entry := &model.WalletEntry{
		UserID:        userID,
		AmountKopecks: amount,
		Description:   description,
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.PostWalletEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.broadcast.WalletChanged(userID)
	s.broadcast.MetricsChanged(userID)
	return entry, nil
}
