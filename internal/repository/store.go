package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

// Store adapts the SQL repositories to the engine's transactional
// contract. InTx opens one REPEATABLE READ transaction, hands the
// engine a Tx view bound to it and commits only when the callback
// returns nil.
type Store struct {
	db       *sql.DB
	monitors *MonitorRepo
	cells    *GroupCellRepo
	bids     *BidRepo
	playlist *PlaylistRepo
	wallet   *WalletRepo
	favs     *FavoriteRepo
}

// NewStore builds a Store over the shared connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		monitors: NewMonitorRepo(db),
		cells:    NewGroupCellRepo(db),
		bids:     NewBidRepo(db),
		playlist: NewPlaylistRepo(db),
		wallet:   NewWalletRepo(db),
		favs:     NewFavoriteRepo(db),
	}
}

// InTx runs fn inside a single REPEATABLE READ transaction. Any error
// from fn (or from commit) rolls the whole unit back.
func (s *Store) InTx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&storeTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// storeTx is the per-transaction view the engine operates through. It
// delegates to the repositories' *Tx methods and translates
// sql.ErrNoRows into the engine's sentinel.
type storeTx struct {
	s  *Store
	tx *sql.Tx
}

func noRow(err error) error {
	if err == sql.ErrNoRows {
		return service.ErrNoRow
	}
	return err
}

func (t *storeTx) MonitorByID(ctx context.Context, id uint64) (*model.Monitor, error) {
	m, err := t.s.monitors.GetTx(ctx, t.tx, id)
	return m, noRow(err)
}

func (t *storeTx) InsertMonitor(ctx context.Context, m *model.Monitor) error {
	return t.s.monitors.InsertTx(ctx, t.tx, m)
}

func (t *storeTx) UpdateMonitorFields(ctx context.Context, id uint64, p service.MonitorPatch) error {
	return t.s.monitors.UpdateFieldsTx(ctx, t.tx, id, p)
}

func (t *storeTx) SetMonitorStatus(ctx context.Context, id uint64, st model.MonitorStatus) error {
	return t.s.monitors.SetStatusTx(ctx, t.tx, id, st)
}

func (t *storeTx) SetMonitorMultiple(ctx context.Context, id uint64, mm model.MonitorMultiple) error {
	return t.s.monitors.SetMultipleTx(ctx, t.tx, id, mm)
}

func (t *storeTx) SetMonitorPlaylist(ctx context.Context, id uint64, playlistID *uint64) error {
	return t.s.monitors.SetPlaylistTx(ctx, t.tx, id, playlistID)
}

func (t *storeTx) SetGroupOnline(ctx context.Context, id uint64, n uint32) error {
	return t.s.monitors.SetGroupOnlineTx(ctx, t.tx, id, n)
}

func (t *storeTx) DeleteMonitor(ctx context.Context, id uint64) (int64, error) {
	return t.s.monitors.DeleteTx(ctx, t.tx, id)
}

func (t *storeTx) GroupCells(ctx context.Context, parentID uint64) ([]model.MonitorGroupCell, error) {
	return t.s.cells.ListByParentTx(ctx, t.tx, parentID)
}

func (t *storeTx) CellByMonitor(ctx context.Context, monitorID uint64) (*model.MonitorGroupCell, error) {
	c, err := t.s.cells.GetByMonitorTx(ctx, t.tx, monitorID)
	return c, noRow(err)
}

func (t *storeTx) InsertCell(ctx context.Context, c *model.MonitorGroupCell) error {
	return t.s.cells.InsertTx(ctx, t.tx, c)
}

func (t *storeTx) UpdateCellPosition(ctx context.Context, id uint64, row, col uint32) error {
	return t.s.cells.UpdatePositionTx(ctx, t.tx, id, row, col)
}

func (t *storeTx) DeleteCell(ctx context.Context, id uint64) error {
	return t.s.cells.DeleteTx(ctx, t.tx, id)
}

func (t *storeTx) PlaylistByID(ctx context.Context, id uint64) (*model.Playlist, error) {
	p, err := t.s.playlist.GetTx(ctx, t.tx, id)
	return p, noRow(err)
}

func (t *storeTx) InsertBid(ctx context.Context, b *model.Bid) error {
	return t.s.bids.InsertTx(ctx, t.tx, b)
}

func (t *storeTx) UpdateBid(ctx context.Context, id uint64, p service.BidPatch) (int64, error) {
	return t.s.bids.UpdateTx(ctx, t.tx, id, p)
}

func (t *storeTx) BidByID(ctx context.Context, id uint64, rel service.Relation) (*model.Bid, error) {
	b, err := t.s.bids.GetTx(ctx, t.tx, id, rel)
	return b, noRow(err)
}

func (t *storeTx) BidsByParent(ctx context.Context, parentID uint64) ([]model.Bid, error) {
	return t.s.bids.ListByParentTx(ctx, t.tx, parentID)
}

func (t *storeTx) DeleteBid(ctx context.Context, id uint64) (int64, error) {
	return t.s.bids.DeleteTx(ctx, t.tx, id)
}

func (t *storeTx) PostWalletEntry(ctx context.Context, e *model.WalletEntry) error {
	return t.s.wallet.PostTx(ctx, t.tx, e)
}

func (t *storeTx) WalletBalance(ctx context.Context, userID uint64) (int64, error) {
	return t.s.wallet.BalanceTx(ctx, t.tx, userID)
}

func (t *storeTx) FavoriteExists(ctx context.Context, userID, monitorID uint64) (bool, error) {
	return t.s.favs.ExistsTx(ctx, t.tx, userID, monitorID)
}

func (t *storeTx) InsertFavorite(ctx context.Context, f *model.MonitorFavorite) error {
	return t.s.favs.InsertTx(ctx, t.tx, f)
}

func (t *storeTx) DeleteFavorite(ctx context.Context, userID, monitorID uint64) (int64, error) {
	return t.s.favs.DeleteTx(ctx, t.tx, userID, monitorID)
}
