package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

const (
	sellerID = uint64(1)
	buyerID  = uint64(2)
	adminID  = uint64(9)
)

var (
	seller = Actor{ID: sellerID, Role: model.RoleOwner}
	buyer  = Actor{ID: buyerID, Role: model.RoleAdvertiser}
	admin  = Actor{ID: adminID, Role: model.RoleAdministrator}
)

// fixedNow pins the clock so that open-ended windows and the charge
// arithmetic are deterministic.
var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type bidFixture struct {
	store    *memStore
	bc       *fakeBroadcaster
	notifier *fakeNotifier
	svc      *BidService
	playlist *model.Playlist
	monitor  *model.Monitor
}

// newBidFixture seeds one seller monitor (1 kopeck/s, 10 warranted
// seconds) and one 100-second buyer playlist. With a one-day window the
// playlist loops 864 times, so a third-party bid costs 8640 kopecks.
func newBidFixture(t *testing.T) *bidFixture {
	t.Helper()
	prev := clockNow
	clockNow = func() time.Time { return fixedNow }
	t.Cleanup(func() { clockNow = prev })

	store := newMemStore()
	bc := &fakeBroadcaster{}
	notifier := &fakeNotifier{}
	svc := NewBidService(store, GridPartitioner{}, notifier, bc, 10)

	w, h := uint32(1920), uint32(1080)
	monitor := store.addMonitor(&model.Monitor{
		OwnerID:     sellerID,
		Name:        "lobby screen",
		Multiple:    model.MultipleSingle,
		Width:       &w,
		Height:      &h,
		Price1s:     1,
		MinWarranty: 10,
	})
	playlist := store.addPlaylist(&model.Playlist{
		OwnerID:     buyerID,
		Name:        "spring promo",
		DurationSec: 100,
	})
	store.credit(buyerID, 10000)

	return &bidFixture{store: store, bc: bc, notifier: notifier, svc: svc, playlist: playlist, monitor: monitor}
}

func oneDayWindow() (time.Time, *time.Time) {
	when := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	before := when.Add(12 * time.Hour)
	return when, &before
}

func (f *bidFixture) createBid(t *testing.T) *model.Bid {
	t.Helper()
	when, before := oneDayWindow()
	bids, err := f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: f.playlist.ID,
		MonitorIDs: []uint64{f.monitor.ID},
		DateWhen:   when,
		DateBefore: before,
	})
	require.NoError(t, err)
	require.Len(t, bids, 1)
	return bids[0]
}

func TestCreateBidChargesBuyer(t *testing.T) {
	f := newBidFixture(t)

	bid := f.createBid(t)

	assert.Equal(t, model.ApprovedNotProcessed, bid.Approved)
	assert.Equal(t, model.BidWaiting, bid.Status)
	assert.Equal(t, int64(8640), bid.SumKopecks)
	require.NotNil(t, bid.BuyerID)
	assert.Equal(t, buyerID, *bid.BuyerID)
	assert.Equal(t, sellerID, bid.SellerID)

	assert.Equal(t, int64(10000-8640), f.store.balance(buyerID))
	assert.Equal(t, int64(0), f.store.balance(sellerID))

	// A pending bid notifies the seller but is not broadcast as changed.
	assert.Equal(t, []uint64{bid.ID}, f.notifier.pending)
	assert.Empty(t, f.notifier.decided)
	assert.Empty(t, f.bc.changed)
	assert.Contains(t, f.bc.wallets, buyerID)
}

func TestCreateBidInsufficientFunds(t *testing.T) {
	f := newBidFixture(t)
	f.store.credit(buyerID, -9000) // balance drops to 1000

	when, before := oneDayWindow()
	_, err := f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: f.playlist.ID,
		MonitorIDs: []uint64{f.monitor.ID},
		DateWhen:   when,
		DateBefore: before,
	})
	require.Error(t, err)
	assert.Equal(t, KindNotAcceptable, KindOf(err))

	assert.Empty(t, f.store.bids)
	assert.Equal(t, int64(1000), f.store.balance(buyerID))
	assert.Empty(t, f.notifier.pending)
}

func TestCreateBidBatchIsAtomic(t *testing.T) {
	f := newBidFixture(t)

	when, before := oneDayWindow()
	_, err := f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: f.playlist.ID,
		MonitorIDs: []uint64{f.monitor.ID, 999},
		DateWhen:   when,
		DateBefore: before,
	})
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))

	// The valid first monitor must not leave a bid or a debit behind.
	assert.Empty(t, f.store.bids)
	assert.Equal(t, int64(10000), f.store.balance(buyerID))
	assert.Empty(t, f.bc.wallets)
}

func TestCreateBidValidation(t *testing.T) {
	f := newBidFixture(t)
	when, _ := oneDayWindow()

	_, err := f.svc.Create(context.Background(), buyer, CreateBidInput{PlaylistID: f.playlist.ID, DateWhen: when})
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: f.playlist.ID,
		MonitorIDs: []uint64{f.monitor.ID},
	})
	assert.Equal(t, KindBadRequest, KindOf(err))

	// A foreign playlist is reported as missing, not forbidden.
	foreign := f.store.addPlaylist(&model.Playlist{OwnerID: sellerID, Name: "not yours", DurationSec: 60})
	_, err = f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: foreign.ID,
		MonitorIDs: []uint64{f.monitor.ID},
		DateWhen:   when,
	})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCreateSelfBidApprovesImmediately(t *testing.T) {
	f := newBidFixture(t)
	own := f.store.addPlaylist(&model.Playlist{OwnerID: sellerID, Name: "house ads", DurationSec: 30})

	when, before := oneDayWindow()
	bids, err := f.svc.Create(context.Background(), seller, CreateBidInput{
		PlaylistID: own.ID,
		MonitorIDs: []uint64{f.monitor.ID},
		DateWhen:   when,
		DateBefore: before,
	})
	require.NoError(t, err)
	require.Len(t, bids, 1)
	bid := bids[0]

	assert.Equal(t, model.ApprovedAllowed, bid.Approved)
	assert.Equal(t, model.BidOK, bid.Status)
	assert.Nil(t, bid.BuyerID)
	assert.Zero(t, bid.SumKopecks)
	assert.Equal(t, int64(0), f.store.balance(sellerID))
	assert.Empty(t, f.notifier.pending)
	assert.Equal(t, []uint64{bid.ID}, f.bc.changed)

	m := f.store.monitorByID(f.monitor.ID)
	require.NotNil(t, m.PlaylistID)
	assert.Equal(t, own.ID, *m.PlaylistID)
}

func TestApprovalCreditsSellerExactlyOnce(t *testing.T) {
	f := newBidFixture(t)
	bid := f.createBid(t)

	allowed := model.ApprovedAllowed
	out, err := f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &allowed})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovedAllowed, out.Approved)

	// 10% commission: 8640 charged, 7776 paid out, 864 retained.
	assert.Equal(t, int64(7776), f.store.balance(sellerID))
	assert.Equal(t, int64(10000-8640), f.store.balance(buyerID))
	assert.Equal(t, []uint64{bid.ID}, f.notifier.decided)

	// Repeating the same decision must not move money again.
	_, err = f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &allowed})
	require.NoError(t, err)
	assert.Equal(t, int64(7776), f.store.balance(sellerID))
	assert.Equal(t, []uint64{bid.ID}, f.notifier.decided)
}

func TestDenialRefundsBuyerExactlyOnce(t *testing.T) {
	f := newBidFixture(t)
	bid := f.createBid(t)

	denied := model.ApprovedDenied
	_, err := f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &denied})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), f.store.balance(buyerID))
	assert.Equal(t, int64(0), f.store.balance(sellerID))
	assert.Equal(t, []uint64{bid.ID}, f.notifier.decided)

	_, err = f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &denied})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), f.store.balance(buyerID))
}

func TestAdminResetIsNotifyOnly(t *testing.T) {
	f := newBidFixture(t)
	bid := f.createBid(t)

	allowed := model.ApprovedAllowed
	_, err := f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &allowed})
	require.NoError(t, err)
	sellerBalance := f.store.balance(sellerID)
	buyerBalance := f.store.balance(buyerID)

	reset := model.ApprovedNotProcessed
	out, err := f.svc.Update(context.Background(), admin, bid.ID, UpdateBidInput{Approved: &reset})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovedNotProcessed, out.Approved)

	// No money moves on a reset; the seller is re-notified instead.
	assert.Equal(t, sellerBalance, f.store.balance(sellerID))
	assert.Equal(t, buyerBalance, f.store.balance(buyerID))
	assert.Equal(t, []uint64{bid.ID, bid.ID}, f.notifier.pending)
}

func TestOnlySellerOrAdminDecides(t *testing.T) {
	f := newBidFixture(t)
	bid := f.createBid(t)

	allowed := model.ApprovedAllowed
	_, err := f.svc.Update(context.Background(), buyer, bid.ID, UpdateBidInput{Approved: &allowed})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, int64(0), f.store.balance(sellerID))

	_, err = f.svc.Update(context.Background(), admin, bid.ID, UpdateBidInput{Approved: &allowed})
	require.NoError(t, err)
	assert.Equal(t, int64(7776), f.store.balance(sellerID))
}

// groupFixture wires a group parent with two SINGLE cells under the
// standard seller/buyer pair.
func groupFixture(t *testing.T, mode model.MonitorMultiple) (*bidFixture, *model.Monitor, []*model.Monitor) {
	t.Helper()
	f := newBidFixture(t)
	parent := f.store.addMonitor(&model.Monitor{
		OwnerID:     sellerID,
		Name:        "video wall",
		Multiple:    mode,
		Price1s:     1,
		MinWarranty: 10,
	})
	var cells []*model.Monitor
	for i := 0; i < 2; i++ {
		w, h := uint32(1920), uint32(1080)
		cell := f.store.addMonitor(&model.Monitor{
			OwnerID:     sellerID,
			Name:        "wall cell",
			Multiple:    model.MultipleSingle,
			Width:       &w,
			Height:      &h,
		})
		f.store.addCell(&model.MonitorGroupCell{
			ParentID:  parent.ID,
			MonitorID: cell.ID,
			Row:       0,
			Col:       uint32(i),
			UserID:    sellerID,
		})
		cells = append(cells, cell)
	}
	return f, parent, cells
}

func TestApprovalFansOutAcrossGroup(t *testing.T) {
	f, parent, cells := groupFixture(t, model.MultipleMirror)

	when, before := oneDayWindow()
	bids, err := f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: f.playlist.ID,
		MonitorIDs: []uint64{parent.ID},
		DateWhen:   when,
		DateBefore: before,
	})
	require.NoError(t, err)
	bid := bids[0]
	assert.Empty(t, f.store.bidsOf(bid.ID), "no fan-out before approval")

	allowed := model.ApprovedAllowed
	_, err = f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &allowed})
	require.NoError(t, err)

	subs := f.store.bidsOf(bid.ID)
	require.Len(t, subs, 2)
	for _, sub := range subs {
		assert.True(t, sub.Hide)
		assert.Equal(t, model.ApprovedAllowed, sub.Approved)
		assert.Equal(t, bid.PlaylistID, sub.PlaylistID)
	}
	for _, cell := range cells {
		m := f.store.monitorByID(cell.ID)
		require.NotNil(t, m.PlaylistID)
		assert.Equal(t, f.playlist.ID, *m.PlaylistID)
	}
}

func TestDeleteBidCleansUpScalingGroup(t *testing.T) {
	f, parent, cells := groupFixture(t, model.MultipleScaling)

	when, before := oneDayWindow()
	bids, err := f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: f.playlist.ID,
		MonitorIDs: []uint64{parent.ID},
		DateWhen:   when,
		DateBefore: before,
	})
	require.NoError(t, err)
	bid := bids[0]

	allowed := model.ApprovedAllowed
	_, err = f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &allowed})
	require.NoError(t, err)
	require.Len(t, f.store.bidsOf(bid.ID), 2)

	affected, err := f.svc.Delete(context.Background(), buyer, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	assert.Empty(t, f.store.bidsOf(bid.ID))
	assert.Nil(t, f.store.bidByID(bid.ID))
	for _, cell := range cells {
		assert.Nil(t, f.store.monitorByID(cell.ID).PlaylistID, "scaling cells release their playlist")
	}
}

func countOf(ids []uint64, id uint64) int {
	n := 0
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return n
}

func TestDeleteBidBroadcastsRemovalOnce(t *testing.T) {
	f := newBidFixture(t)
	bid := f.createBid(t)

	_, err := f.svc.Delete(context.Background(), buyer, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(f.bc.removed, bid.ID))
}

func TestDeleteGroupBidBroadcastsEachRemovalOnce(t *testing.T) {
	f, parent, _ := groupFixture(t, model.MultipleMirror)

	when, before := oneDayWindow()
	bids, err := f.svc.Create(context.Background(), buyer, CreateBidInput{
		PlaylistID: f.playlist.ID,
		MonitorIDs: []uint64{parent.ID},
		DateWhen:   when,
		DateBefore: before,
	})
	require.NoError(t, err)
	bid := bids[0]

	allowed := model.ApprovedAllowed
	_, err = f.svc.Update(context.Background(), seller, bid.ID, UpdateBidInput{Approved: &allowed})
	require.NoError(t, err)
	subs := f.store.bidsOf(bid.ID)
	require.Len(t, subs, 2)

	_, err = f.svc.Delete(context.Background(), buyer, bid.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, countOf(f.bc.removed, bid.ID))
	for _, sub := range subs {
		assert.Equal(t, 1, countOf(f.bc.removed, sub.ID))
	}
}

func TestDeleteBidOwnershipCheck(t *testing.T) {
	f := newBidFixture(t)
	bid := f.createBid(t)

	stranger := Actor{ID: 77, Role: model.RoleAdvertiser}
	_, err := f.svc.Delete(context.Background(), stranger, bid.ID)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	require.NotNil(t, f.store.bidByID(bid.ID))

	_, err = f.svc.Delete(context.Background(), buyer, bid.ID)
	require.NoError(t, err)
	assert.Nil(t, f.store.bidByID(bid.ID))
}

func TestDaysInWindow(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, time.March, d, 15, 30, 0, 0, time.UTC) }

	t.Run("same day counts as one", func(t *testing.T) {
		before := day(10)
		assert.Equal(t, int64(1), daysInWindow(day(10), &before, fixedNow))
	})
	t.Run("inclusive span", func(t *testing.T) {
		before := day(12)
		assert.Equal(t, int64(3), daysInWindow(day(10), &before, fixedNow))
	})
	t.Run("inverted window clamps to one", func(t *testing.T) {
		before := day(8)
		assert.Equal(t, int64(1), daysInWindow(day(10), &before, fixedNow))
	})
	t.Run("open window measures to now", func(t *testing.T) {
		assert.Equal(t, int64(3), daysInWindow(day(8), nil, fixedNow))
	})
}

func TestChargeSum(t *testing.T) {
	assert.Equal(t, int64(8640), chargeSum(1, 10, 1, 100))
	assert.Equal(t, int64(17280), chargeSum(1, 10, 2, 100))
	assert.Zero(t, chargeSum(1, 10, 1, 0))
	// Remainder loops are dropped in the buyer's favor.
	assert.Equal(t, int64(12340), chargeSum(1, 10, 1, 70))
}
