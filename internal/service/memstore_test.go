package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// memStore is an in-memory Store used by the engine tests. InTx takes a
// snapshot of every arena before running the callback and restores it on
// error, mirroring the rollback semantics of the SQL implementation.
type memStore struct {
	mu        sync.Mutex
	monitors  map[uint64]*model.Monitor
	cells     map[uint64]*model.MonitorGroupCell
	playlists map[uint64]*model.Playlist
	bids      map[uint64]*model.Bid
	wallet    []*model.WalletEntry
	favorites map[uint64]*model.MonitorFavorite
	nextID    uint64
	nextSeq   uint64
}

func newMemStore() *memStore {
	return &memStore{
		monitors:  make(map[uint64]*model.Monitor),
		cells:     make(map[uint64]*model.MonitorGroupCell),
		playlists: make(map[uint64]*model.Playlist),
		bids:      make(map[uint64]*model.Bid),
		favorites: make(map[uint64]*model.MonitorFavorite),
	}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) snapshot() *memStore {
	c := newMemStore()
	c.nextID = s.nextID
	c.nextSeq = s.nextSeq
	for k, v := range s.monitors {
		m := *v
		c.monitors[k] = &m
	}
	for k, v := range s.cells {
		cell := *v
		c.cells[k] = &cell
	}
	for k, v := range s.playlists {
		p := *v
		c.playlists[k] = &p
	}
	for k, v := range s.bids {
		b := *v
		c.bids[k] = &b
	}
	for _, e := range s.wallet {
		ec := *e
		c.wallet = append(c.wallet, &ec)
	}
	for k, v := range s.favorites {
		f := *v
		c.favorites[k] = &f
	}
	return c
}

func (s *memStore) restore(snap *memStore) {
	s.monitors = snap.monitors
	s.cells = snap.cells
	s.playlists = snap.playlists
	s.bids = snap.bids
	s.wallet = snap.wallet
	s.favorites = snap.favorites
	s.nextID = snap.nextID
	s.nextSeq = snap.nextSeq
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Seed helpers, usable outside a transaction.

func (s *memStore) addMonitor(m *model.Monitor) *model.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	if m.Status == "" {
		m.Status = model.StatusOffline
	}
	if m.Multiple == "" {
		m.Multiple = model.MultipleSingle
	}
	s.monitors[m.ID] = m
	return m
}

func (s *memStore) addPlaylist(p *model.Playlist) *model.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.playlists[p.ID] = p
	return p
}

func (s *memStore) addCell(c *model.MonitorGroupCell) *model.MonitorGroupCell {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.cells[c.ID] = c
	if m, ok := s.monitors[c.MonitorID]; ok {
		m.Multiple = model.MultipleSubordinate
	}
	return c
}

func (s *memStore) credit(userID uint64, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = append(s.wallet, &model.WalletEntry{
		ID:            s.id(),
		UserID:        userID,
		AmountKopecks: amount,
		Description:   "seed",
		CreatedAt:     time.Now(),
	})
}

func (s *memStore) balance(userID uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.wallet {
		if e.UserID == userID {
			sum += e.AmountKopecks
		}
	}
	return sum
}

func (s *memStore) entriesFor(userID uint64) []model.WalletEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WalletEntry
	for _, e := range s.wallet {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out
}

func (s *memStore) bidByID(id uint64) *model.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bids[id]; ok {
		c := *b
		return &c
	}
	return nil
}

func (s *memStore) monitorByID(id uint64) *model.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.monitors[id]; ok {
		c := *m
		return &c
	}
	return nil
}

func (s *memStore) bidsOf(parentID uint64) []model.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Bid
	for _, b := range s.bids {
		if b.ParentBidID != nil && *b.ParentBidID == parentID {
			out = append(out, *b)
		}
	}
	return out
}

// memTx is the transactional view. The caller already holds the store
// mutex for the duration of InTx.
type memTx struct {
	s *memStore
}

func (t *memTx) MonitorByID(ctx context.Context, id uint64) (*model.Monitor, error) {
	m, ok := t.s.monitors[id]
	if !ok {
		return nil, ErrNoRow
	}
	c := *m
	return &c, nil
}

func (t *memTx) InsertMonitor(ctx context.Context, m *model.Monitor) error {
	m.ID = t.s.id()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	c := *m
	t.s.monitors[m.ID] = &c
	return nil
}

func (t *memTx) UpdateMonitorFields(ctx context.Context, id uint64, p MonitorPatch) error {
	m, ok := t.s.monitors[id]
	if !ok {
		return nil
	}
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Multiple != nil {
		m.Multiple = *p.Multiple
	}
	if p.Width != nil {
		m.Width = p.Width
	}
	if p.Height != nil {
		m.Height = p.Height
	}
	if p.Price1s != nil {
		m.Price1s = *p.Price1s
	}
	if p.MinWarranty != nil {
		m.MinWarranty = *p.MinWarranty
	}
	if p.SetPlaylist {
		m.PlaylistID = p.PlaylistID
	}
	return nil
}

func (t *memTx) SetMonitorStatus(ctx context.Context, id uint64, st model.MonitorStatus) error {
	if m, ok := t.s.monitors[id]; ok {
		m.Status = st
	}
	return nil
}

func (t *memTx) SetMonitorMultiple(ctx context.Context, id uint64, mm model.MonitorMultiple) error {
	if m, ok := t.s.monitors[id]; ok {
		m.Multiple = mm
	}
	return nil
}

func (t *memTx) SetMonitorPlaylist(ctx context.Context, id uint64, playlistID *uint64) error {
	if m, ok := t.s.monitors[id]; ok {
		m.PlaylistID = playlistID
	}
	return nil
}

func (t *memTx) SetGroupOnline(ctx context.Context, id uint64, n uint32) error {
	if m, ok := t.s.monitors[id]; ok {
		m.GroupOnlineMonitors = n
	}
	return nil
}

func (t *memTx) DeleteMonitor(ctx context.Context, id uint64) (int64, error) {
	if _, ok := t.s.monitors[id]; !ok {
		return 0, nil
	}
	delete(t.s.monitors, id)
	return 1, nil
}

func (t *memTx) GroupCells(ctx context.Context, parentID uint64) ([]model.MonitorGroupCell, error) {
	var out []model.MonitorGroupCell
	for _, c := range t.s.cells {
		if c.ParentID == parentID {
			out = append(out, *c)
		}
	}
	// Row-major ordering matches the SQL layer.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Row < out[i].Row || (out[j].Row == out[i].Row && out[j].Col < out[i].Col) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (t *memTx) CellByMonitor(ctx context.Context, monitorID uint64) (*model.MonitorGroupCell, error) {
	for _, c := range t.s.cells {
		if c.MonitorID == monitorID {
			cc := *c
			return &cc, nil
		}
	}
	return nil, ErrNoRow
}

func (t *memTx) InsertCell(ctx context.Context, c *model.MonitorGroupCell) error {
	c.ID = t.s.id()
	c.CreatedAt = time.Now()
	cc := *c
	t.s.cells[c.ID] = &cc
	return nil
}

func (t *memTx) UpdateCellPosition(ctx context.Context, id uint64, row, col uint32) error {
	if c, ok := t.s.cells[id]; ok {
		c.Row = row
		c.Col = col
	}
	return nil
}

func (t *memTx) DeleteCell(ctx context.Context, id uint64) error {
	delete(t.s.cells, id)
	return nil
}

func (t *memTx) PlaylistByID(ctx context.Context, id uint64) (*model.Playlist, error) {
	p, ok := t.s.playlists[id]
	if !ok {
		return nil, ErrNoRow
	}
	c := *p
	return &c, nil
}

func (t *memTx) InsertBid(ctx context.Context, b *model.Bid) error {
	b.ID = t.s.id()
	t.s.nextSeq++
	b.Seq = t.s.nextSeq
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	c := *b
	t.s.bids[b.ID] = &c
	return nil
}

func (t *memTx) UpdateBid(ctx context.Context, id uint64, p BidPatch) (int64, error) {
	b, ok := t.s.bids[id]
	if !ok {
		return 0, nil
	}
	if p.Approved != nil {
		b.Approved = *p.Approved
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Hide != nil {
		b.Hide = *p.Hide
	}
	if p.PlaylistChange != nil {
		b.PlaylistChange = *p.PlaylistChange
	}
	b.UpdatedAt = time.Now()
	return 1, nil
}

func (t *memTx) BidByID(ctx context.Context, id uint64, rel Relation) (*model.Bid, error) {
	b, ok := t.s.bids[id]
	if !ok {
		return nil, ErrNoRow
	}
	c := *b
	if rel == RelationSide {
		if c.BuyerID != nil {
			c.Buyer = &model.User{ID: *c.BuyerID}
		}
		c.Seller = &model.User{ID: c.SellerID}
		c.Actor = &model.User{ID: c.UserID}
	}
	return &c, nil
}

func (t *memTx) BidsByParent(ctx context.Context, parentID uint64) ([]model.Bid, error) {
	var out []model.Bid
	for _, b := range t.s.bids {
		if b.ParentBidID != nil && *b.ParentBidID == parentID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (t *memTx) DeleteBid(ctx context.Context, id uint64) (int64, error) {
	if _, ok := t.s.bids[id]; !ok {
		return 0, nil
	}
	delete(t.s.bids, id)
	return 1, nil
}

func (t *memTx) PostWalletEntry(ctx context.Context, e *model.WalletEntry) error {
	e.ID = t.s.id()
	e.CreatedAt = time.Now()
	c := *e
	t.s.wallet = append(t.s.wallet, &c)
	return nil
}

func (t *memTx) WalletBalance(ctx context.Context, userID uint64) (int64, error) {
	var sum int64
	for _, e := range t.s.wallet {
		if e.UserID == userID {
			sum += e.AmountKopecks
		}
	}
	return sum, nil
}

func (t *memTx) FavoriteExists(ctx context.Context, userID, monitorID uint64) (bool, error) {
	for _, f := range t.s.favorites {
		if f.UserID == userID && f.MonitorID == monitorID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertFavorite(ctx context.Context, f *model.MonitorFavorite) error {
	f.ID = t.s.id()
	f.CreatedAt = time.Now()
	c := *f
	t.s.favorites[f.ID] = &c
	return nil
}

func (t *memTx) DeleteFavorite(ctx context.Context, userID, monitorID uint64) (int64, error) {
	for id, f := range t.s.favorites {
		if f.UserID == userID && f.MonitorID == monitorID {
			delete(t.s.favorites, id)
			return 1, nil
		}
	}
	return 0, nil
}

// Recording fakes for the engine's collaborators.

type fakeBroadcaster struct {
	mu       sync.Mutex
	changed  []uint64 // bid ids
	removed  []uint64 // bid ids
	statuses []string // "monitorID:status"
	wallets  []uint64
	metrics  []uint64
}

func (f *fakeBroadcaster) BidChanged(b *model.Bid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, b.ID)
}

func (f *fakeBroadcaster) BidRemoved(b *model.Bid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, b.ID)
}

func (f *fakeBroadcaster) MonitorStatus(m *model.Monitor, userID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusKey(m.ID, m.Status))
}

func (f *fakeBroadcaster) WalletChanged(userID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets = append(f.wallets, userID)
}

func (f *fakeBroadcaster) MetricsChanged(userID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = append(f.metrics, userID)
}

func statusKey(monitorID uint64, st model.MonitorStatus) string {
	return fmt.Sprintf("%d:%s", monitorID, st)
}

type fakeNotifier struct {
	mu      sync.Mutex
	pending []uint64 // bid ids
	decided []uint64 // bid ids
}

func (f *fakeNotifier) BidPending(ctx context.Context, b *model.Bid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, b.ID)
}

func (f *fakeNotifier) BidDecided(ctx context.Context, b *model.Bid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decided = append(f.decided, b.ID)
}
