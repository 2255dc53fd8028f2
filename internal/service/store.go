package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// ErrNoRow is returned by Tx lookups when the requested row does not
// exist.  Storage implementations translate their own sentinels (for
// example sql.ErrNoRows) into this value so that the engine can branch
// on it without knowing the backend.
var ErrNoRow = errors.New("no row")

// Relation selects how much of a bid's object graph a lookup loads.
// The engine asks for RelationSide before running approval side effects,
// which need the buyer/seller/actor user rows; RelationMin loads the bid
// row alone.
type Relation int

const (
	RelationMin Relation = iota
	RelationSide
)

// BidPatch is a partial update applied to a bid.  Nil fields are left
// unchanged.  Monitor and playlist references are immutable after
// creation and therefore have no patch fields.
type BidPatch struct {
	Approved       *model.BidApproved
	Status         *model.BidStatus
	Hide           *bool
	PlaylistChange *bool
}

// MonitorPatch is a partial update applied to a monitor's own fields.
// Nil fields are left unchanged.  SetPlaylist distinguishes "detach the
// playlist" (true with nil PlaylistID) from "leave it alone" (false).
type MonitorPatch struct {
	Name        *string
	Multiple    *model.MonitorMultiple
	Width       *uint32
	Height      *uint32
	Price1s     *int64
	MinWarranty *int64
	SetPlaylist bool
	PlaylistID  *uint64
}

// CellSpec describes one requested subordinate cell in a topology
// create/update call.
type CellSpec struct {
	MonitorID uint64 `json:"monitor_id"`
	Row       uint32 `json:"row"`
	Col       uint32 `json:"col"`
}

// Tx is the set of data operations available inside one atomic unit.
// The engine threads a Tx value explicitly through every function that
// must participate in the same transaction; the transaction commit is
// the single synchronization barrier.
type Tx interface {
	MonitorByID(ctx context.Context, id uint64) (*model.Monitor, error)
	InsertMonitor(ctx context.Context, m *model.Monitor) error
	UpdateMonitorFields(ctx context.Context, id uint64, p MonitorPatch) error
	SetMonitorStatus(ctx context.Context, id uint64, st model.MonitorStatus) error
	SetMonitorMultiple(ctx context.Context, id uint64, mm model.MonitorMultiple) error
	SetMonitorPlaylist(ctx context.Context, id uint64, playlistID *uint64) error
	SetGroupOnline(ctx context.Context, id uint64, n uint32) error
	DeleteMonitor(ctx context.Context, id uint64) (int64, error)

	GroupCells(ctx context.Context, parentID uint64) ([]model.MonitorGroupCell, error)
	CellByMonitor(ctx context.Context, monitorID uint64) (*model.MonitorGroupCell, error)
	InsertCell(ctx context.Context, c *model.MonitorGroupCell) error
	UpdateCellPosition(ctx context.Context, id uint64, row, col uint32) error
	DeleteCell(ctx context.Context, id uint64) error

	PlaylistByID(ctx context.Context, id uint64) (*model.Playlist, error)

	InsertBid(ctx context.Context, b *model.Bid) error
	UpdateBid(ctx context.Context, id uint64, p BidPatch) (int64, error)
	BidByID(ctx context.Context, id uint64, rel Relation) (*model.Bid, error)
	BidsByParent(ctx context.Context, parentID uint64) ([]model.Bid, error)
	DeleteBid(ctx context.Context, id uint64) (int64, error)

	PostWalletEntry(ctx context.Context, e *model.WalletEntry) error
	WalletBalance(ctx context.Context, userID uint64) (int64, error)

	FavoriteExists(ctx context.Context, userID, monitorID uint64) (bool, error)
	InsertFavorite(ctx context.Context, f *model.MonitorFavorite) error
	DeleteFavorite(ctx context.Context, userID, monitorID uint64) (int64, error)
}

// Store opens atomic units for the engine.  InTx runs fn inside one
// REPEATABLE READ transaction; any error aborts the whole unit and no
// partial ledger/topology/bid state persists.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Actor is the already-authenticated caller: credentials are verified
// upstream, the engine only consumes the resolved identity and role.
type Actor struct {
	ID   uint64
	Role string
}

// Admin reports whether the actor bypasses ownership checks.
func (a Actor) Admin() bool { return a.Role == model.RoleAdministrator }

// Broadcaster pushes incremental state to connected realtime clients.
// All methods are fire-and-forget relative to the transaction that
// triggered them: the engine invokes them only after commit, and
// implementations must swallow (log) their own failures.
type Broadcaster interface {
	BidChanged(bid *model.Bid)
	BidRemoved(bid *model.Bid)
	MonitorStatus(m *model.Monitor, userID uint64)
	WalletChanged(userID uint64)
	MetricsChanged(userID uint64)
}

// Notifier dispatches fire-and-forget messages to the external
// mail/notification channel.  Failures are logged by the
// implementation and never propagate into the engine.
type Notifier interface {
	BidPending(ctx context.Context, bid *model.Bid)
	BidDecided(ctx context.Context, bid *model.Bid)
}

// clockNow is swapped in tests that need a fixed time base.
var clockNow = time.Now
