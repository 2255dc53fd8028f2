package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

type monitorFixture struct {
	store *memStore
	bc    *fakeBroadcaster
	svc   *MonitorService
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	store := newMemStore()
	bc := &fakeBroadcaster{}
	return &monitorFixture{store: store, bc: bc, svc: NewMonitorService(store, bc)}
}

// addSingle seeds a SINGLE monitor owned by the seller.
func (f *monitorFixture) addSingle(name string) *model.Monitor {
	w, h := uint32(1920), uint32(1080)
	return f.store.addMonitor(&model.Monitor{
		OwnerID:  sellerID,
		Name:     name,
		Multiple: model.MultipleSingle,
		Width:    &w,
		Height:   &h,
	})
}

func u32(v uint32) *uint32 { return &v }

func TestCreateSingleMonitor(t *testing.T) {
	f := newMonitorFixture(t)

	m, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:        "entrance",
		Width:       u32(1280),
		Height:      u32(720),
		Price1s:     5,
		MinWarranty: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, model.MultipleSingle, m.Multiple)
	assert.Equal(t, model.StatusOffline, m.Status)
	assert.Contains(t, f.bc.metrics, sellerID)

	_, err = f.svc.Create(context.Background(), seller, CreateMonitorInput{Name: "no resolution"})
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:   "single with cells",
		Width:  u32(1),
		Height: u32(1),
		Cells:  []CellSpec{{MonitorID: 1}},
	})
	assert.Equal(t, KindNotAcceptable, KindOf(err))
}

func TestCreateGroupMonitor(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	b := f.addSingle("cell b")

	parent, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall",
		Multiple: model.MultipleScaling,
		Cells: []CellSpec{
			{MonitorID: a.ID, Row: 0, Col: 0},
			{MonitorID: b.ID, Row: 0, Col: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.MultipleSubordinate, f.store.monitorByID(a.ID).Multiple)
	assert.Equal(t, model.MultipleSubordinate, f.store.monitorByID(b.ID).Multiple)
	require.NotNil(t, f.store.monitorByID(parent.ID))

	_, err = f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "empty wall",
		Multiple: model.MultipleMirror,
	})
	assert.Equal(t, KindNotAcceptable, KindOf(err))
}

func TestCreateScalingRejectsCollidingCells(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	b := f.addSingle("cell b")

	_, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall",
		Multiple: model.MultipleScaling,
		Cells: []CellSpec{
			{MonitorID: a.ID, Row: 1, Col: 2},
			{MonitorID: b.ID, Row: 1, Col: 2},
		},
	})
	require.Error(t, err)
	assert.Equal(t, KindNotAcceptable, KindOf(err))

	// The whole create rolls back: neither member was flipped.
	assert.Equal(t, model.MultipleSingle, f.store.monitorByID(a.ID).Multiple)
	assert.Equal(t, model.MultipleSingle, f.store.monitorByID(b.ID).Multiple)
}

func TestCreateGroupRejectsNonSingleMember(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	_, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "first wall",
		Multiple: model.MultipleMirror,
		Cells:    []CellSpec{{MonitorID: a.ID}},
	})
	require.NoError(t, err)

	// a is SUBORDINATE now; a second group cannot claim it.
	_, err = f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "second wall",
		Multiple: model.MultipleMirror,
		Cells:    []CellSpec{{MonitorID: a.ID}},
	})
	require.Error(t, err)
	assert.Equal(t, KindNotAcceptable, KindOf(err))
}

func TestUpdateDiffsCells(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	b := f.addSingle("cell b")
	c := f.addSingle("cell c")

	parent, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall",
		Multiple: model.MultipleScaling,
		Cells: []CellSpec{
			{MonitorID: a.ID, Row: 0, Col: 0},
			{MonitorID: b.ID, Row: 0, Col: 1},
		},
	})
	require.NoError(t, err)

	// Drop b, move a, add c.
	_, err = f.svc.Update(context.Background(), seller, parent.ID, MonitorPatch{}, []CellSpec{
		{MonitorID: a.ID, Row: 1, Col: 0},
		{MonitorID: c.ID, Row: 1, Col: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, model.MultipleSingle, f.store.monitorByID(b.ID).Multiple)
	assert.Equal(t, model.MultipleSubordinate, f.store.monitorByID(c.ID).Multiple)

	var cells []model.MonitorGroupCell
	require.NoError(t, f.store.InTx(context.Background(), func(tx Tx) error {
		var err error
		cells, err = tx.GroupCells(context.Background(), parent.ID)
		return err
	}))
	require.Len(t, cells, 2)
	assert.Equal(t, a.ID, cells[0].MonitorID)
	assert.Equal(t, uint32(1), cells[0].Row)
	assert.Equal(t, uint32(0), cells[0].Col)
}

func TestUpdateModeFlipGuard(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	parent, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall",
		Multiple: model.MultipleMirror,
		Cells:    []CellSpec{{MonitorID: a.ID}},
	})
	require.NoError(t, err)

	single := model.MultipleSingle
	_, err = f.svc.Update(context.Background(), seller, parent.ID, MonitorPatch{Multiple: &single}, nil)
	require.Error(t, err)
	assert.Equal(t, KindNotAcceptable, KindOf(err))

	// The guard runs against the attached cells, so even an explicit
	// empty list cannot combine with the flip in one call.
	m, err := f.svc.Update(context.Background(), seller, parent.ID, MonitorPatch{Multiple: &single}, []CellSpec{})
	require.Error(t, err)
	assert.Equal(t, KindNotAcceptable, KindOf(err))
	assert.Nil(t, m)

	// Detach first, then flip.
	_, err = f.svc.Update(context.Background(), seller, parent.ID, MonitorPatch{}, []CellSpec{})
	require.NoError(t, err)
	out, err := f.svc.Update(context.Background(), seller, parent.ID, MonitorPatch{Multiple: &single}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.MultipleSingle, out.Multiple)
	assert.Equal(t, model.MultipleSingle, f.store.monitorByID(a.ID).Multiple)
}

func TestUpdateRejectsForeignCell(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	_, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall one",
		Multiple: model.MultipleMirror,
		Cells:    []CellSpec{{MonitorID: a.ID}},
	})
	require.NoError(t, err)

	b := f.addSingle("cell b")
	wallTwo, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall two",
		Multiple: model.MultipleMirror,
		Cells:    []CellSpec{{MonitorID: b.ID}},
	})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), seller, wallTwo.ID, MonitorPatch{}, []CellSpec{
		{MonitorID: b.ID},
		{MonitorID: a.ID},
	})
	require.Error(t, err)
	assert.Equal(t, KindNotAcceptable, KindOf(err))
}

func TestUpdateOwnership(t *testing.T) {
	f := newMonitorFixture(t)
	m := f.addSingle("mine")

	name := "renamed"
	_, err := f.svc.Update(context.Background(), buyer, m.ID, MonitorPatch{Name: &name}, nil)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	out, err := f.svc.Update(context.Background(), admin, m.ID, MonitorPatch{Name: &name}, nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", out.Name)
}

func TestStatusAggregatesGroup(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	b := f.addSingle("cell b")
	parent, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall",
		Multiple: model.MultipleMirror,
		Cells: []CellSpec{
			{MonitorID: a.ID, Row: 0, Col: 0},
			{MonitorID: b.ID, Row: 0, Col: 1},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Status(context.Background(), seller, a.ID, model.StatusOnline))
	p := f.store.monitorByID(parent.ID)
	assert.Equal(t, uint32(1), p.GroupOnlineMonitors)
	assert.Equal(t, model.StatusOffline, p.Status, "parent stays offline until every cell is online")

	require.NoError(t, f.svc.Status(context.Background(), seller, b.ID, model.StatusOnline))
	p = f.store.monitorByID(parent.ID)
	assert.Equal(t, uint32(2), p.GroupOnlineMonitors)
	assert.Equal(t, model.StatusOnline, p.Status)
	assert.Contains(t, f.bc.statuses, statusKey(parent.ID, model.StatusOnline))

	// Repeating the same report must not touch the counter again.
	before := len(f.bc.statuses)
	require.NoError(t, f.svc.Status(context.Background(), seller, b.ID, model.StatusOnline))
	p = f.store.monitorByID(parent.ID)
	assert.Equal(t, uint32(2), p.GroupOnlineMonitors)
	// The cell's own broadcast still fires, but no parent flip occurs.
	assert.Equal(t, before+1, len(f.bc.statuses))

	require.NoError(t, f.svc.Status(context.Background(), seller, a.ID, model.StatusOffline))
	p = f.store.monitorByID(parent.ID)
	assert.Equal(t, uint32(1), p.GroupOnlineMonitors)
	assert.Equal(t, model.StatusOffline, p.Status)
	assert.Contains(t, f.bc.statuses, statusKey(parent.ID, model.StatusOffline))
}

func TestStatusValidation(t *testing.T) {
	f := newMonitorFixture(t)
	m := f.addSingle("screen")

	err := f.svc.Status(context.Background(), seller, m.ID, "sleeping")
	assert.Equal(t, KindBadRequest, KindOf(err))

	err = f.svc.Status(context.Background(), seller, 404, model.StatusOnline)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestFavoriteToggle(t *testing.T) {
	f := newMonitorFixture(t)
	m := f.addSingle("screen")
	ctx := context.Background()

	require.NoError(t, f.svc.Favorite(ctx, buyer, m.ID, true))
	// Setting again is idempotent.
	require.NoError(t, f.svc.Favorite(ctx, buyer, m.ID, true))
	require.Len(t, f.store.favorites, 1)

	require.NoError(t, f.svc.Favorite(ctx, buyer, m.ID, false))
	assert.Empty(t, f.store.favorites)

	err := f.svc.Favorite(ctx, buyer, m.ID, false)
	assert.Equal(t, KindNotFound, KindOf(err))

	err = f.svc.Favorite(ctx, buyer, 404, true)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestDeleteGroupDetachesCells(t *testing.T) {
	f := newMonitorFixture(t)
	a := f.addSingle("cell a")
	b := f.addSingle("cell b")
	parent, err := f.svc.Create(context.Background(), seller, CreateMonitorInput{
		Name:     "wall",
		Multiple: model.MultipleMirror,
		Cells: []CellSpec{
			{MonitorID: a.ID},
			{MonitorID: b.ID, Col: 1},
		},
	})
	require.NoError(t, err)

	affected, err := f.svc.Delete(context.Background(), seller, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	assert.Nil(t, f.store.monitorByID(parent.ID))
	assert.Equal(t, model.MultipleSingle, f.store.monitorByID(a.ID).Multiple)
	assert.Equal(t, model.MultipleSingle, f.store.monitorByID(b.ID).Multiple)
	assert.Empty(t, f.store.cells)
}

func TestGridPartitioner(t *testing.T) {
	cells := []model.MonitorGroupCell{
		{MonitorID: 3, Row: 1, Col: 0},
		{MonitorID: 1, Row: 0, Col: 0},
		{MonitorID: 2, Row: 0, Col: 1},
	}
	pl := &model.Playlist{DurationSec: 60}

	t.Run("scaling orders row-major", func(t *testing.T) {
		parent := &model.Monitor{Multiple: model.MultipleScaling}
		out, err := GridPartitioner{}.Partition(parent, cells, pl)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, uint64(1), out[0].MonitorID)
		assert.Equal(t, uint64(2), out[1].MonitorID)
		assert.Equal(t, uint64(3), out[2].MonitorID)
	})
	t.Run("mirror keeps every cell", func(t *testing.T) {
		parent := &model.Monitor{Multiple: model.MultipleMirror}
		out, err := GridPartitioner{}.Partition(parent, cells, pl)
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})
	t.Run("empty group is not partitionable", func(t *testing.T) {
		parent := &model.Monitor{Multiple: model.MultipleMirror}
		_, err := GridPartitioner{}.Partition(parent, nil, pl)
		assert.ErrorIs(t, err, ErrNotPartitionable)
	})
}
