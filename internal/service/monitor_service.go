package service

import (
	"context"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// MonitorService is the topology manager.  It owns monitor records and
// the parent/child grouping table, validates grid topology and
// aggregates subordinate cell status into the parent's display status.
type MonitorService struct {
	store     Store
	broadcast Broadcaster
}

// NewMonitorService constructs a MonitorService.
func NewMonitorService(store Store, broadcast Broadcaster) *MonitorService {
	if store == nil || broadcast == nil {
		panic("nil dependency passed to NewMonitorService")
	}
	return &MonitorService{store: store, broadcast: broadcast}
}

// CreateMonitorInput carries the fields for a new monitor.  Cells must
// be supplied for group monitors and absent for SINGLE ones.
type CreateMonitorInput struct {
	Name        string
	Multiple    model.MonitorMultiple
	Width       *uint32
	Height      *uint32
	Price1s     int64
	MinWarranty int64
	Cells       []CellSpec
}

// Create registers a monitor for the owner.  A SINGLE monitor must
// declare its resolution; a group monitor must receive a non-empty,
// collision-free cell list whose members are currently SINGLE.
func (s *MonitorService) Create(ctx context.Context, owner Actor, in CreateMonitorInput) (*model.Monitor, error) {
	if in.Name == "" {
		return nil, BadRequest("monitor name is required")
	}
	switch in.Multiple {
	case "", model.MultipleSingle:
		in.Multiple = model.MultipleSingle
		if in.Width == nil || in.Height == nil {
			return nil, BadRequest("a SINGLE monitor must declare width and height")
		}
		if len(in.Cells) > 0 {
			return nil, NotAcceptable("a SINGLE monitor cannot carry group cells")
		}
	case model.MultipleScaling, model.MultipleMirror:
		if len(in.Cells) == 0 {
			return nil, NotAcceptable("a group monitor requires at least one cell")
		}
	case model.MultipleSubordinate:
		return nil, BadRequest("SUBORDINATE monitors are created by attaching a SINGLE monitor to a group")
	default:
		return nil, BadRequest("unknown multiplicity %q", in.Multiple)
	}
	if in.Multiple == model.MultipleScaling {
		if err := checkCellPositions(in.Cells); err != nil {
			return nil, err
		}
	}
	m := &model.Monitor{
		OwnerID:     owner.ID,
		Name:        in.Name,
		Status:      model.StatusOffline,
		Multiple:    in.Multiple,
		Width:       in.Width,
		Height:      in.Height,
		Price1s:     in.Price1s,
		MinWarranty: in.MinWarranty,
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertMonitor(ctx, m); err != nil {
			return err
		}
		for _, spec := range in.Cells {
			if err := s.attachCell(ctx, tx, m, owner.ID, spec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.broadcast.MetricsChanged(owner.ID)
	return m, nil
}

// attachCell validates one requested subordinate and registers it: the
// member must exist, be currently SINGLE (or already subordinate to this
// very parent) and is flipped to SUBORDINATE on insert.
func (s *MonitorService) attachCell(ctx context.Context, tx Tx, parent *model.Monitor, ownerID uint64, spec CellSpec) error {
	member, err := tx.MonitorByID(ctx, spec.MonitorID)
	if err == ErrNoRow {
		return BadRequest("cell monitor %d not found", spec.MonitorID)
	}
	if err != nil {
		return err
	}
	if member.Multiple != model.MultipleSingle {
		return NotAcceptable("monitor %d cannot join a group: multiplicity is %s", member.ID, member.Multiple)
	}
	cell := &model.MonitorGroupCell{
		ParentID:  parent.ID,
		MonitorID: member.ID,
		Row:       spec.Row,
		Col:       spec.Col,
		UserID:    ownerID,
	}
	if err := tx.InsertCell(ctx, cell); err != nil {
		return err
	}
	return tx.SetMonitorMultiple(ctx, member.ID, model.MultipleSubordinate)
}

// Update applies a partial field update and, when a cell list is
// supplied, diffs it against the existing memberships: removed cells are
// detached back to SINGLE, surviving cells get position updates, new
// cells are inserted and flipped to SUBORDINATE.  Everything runs in one
// transaction; a status/metrics broadcast for the owner follows commit.
func (s *MonitorService) Update(ctx context.Context, actor Actor, monitorID uint64, patch MonitorPatch, cells []CellSpec) (*model.Monitor, error) {
	var out *model.Monitor
	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.MonitorByID(ctx, monitorID)
		if err == ErrNoRow {
			return NotFound("monitor %d not found", monitorID)
		}
		if err != nil {
			return err
		}
		if !actor.Admin() && m.OwnerID != actor.ID {
			return NotFound("monitor %d not found", monitorID)
		}
		mode := m.Multiple
		if patch.Multiple != nil {
			mode = *patch.Multiple
		}
		existing, err := tx.GroupCells(ctx, monitorID)
		if err != nil {
			return err
		}
		// Mode flip guard: a group cannot silently become a non-group
		// while subordinates are still attached.
		if len(existing) > 0 && !mode.IsGroup() {
			return NotAcceptable("monitor %d still has %d attached cells; detach them first", monitorID, len(existing))
		}
		if cells != nil {
			if !mode.IsGroup() && len(cells) > 0 {
				return NotAcceptable("a %s monitor cannot carry group cells", mode)
			}
			for _, spec := range cells {
				cur, err := tx.CellByMonitor(ctx, spec.MonitorID)
				if err != nil && err != ErrNoRow {
					return err
				}
				if err == nil && cur.ParentID != monitorID {
					return NotAcceptable("monitor %d is already subordinate to group %d", spec.MonitorID, cur.ParentID)
				}
			}
			if mode == model.MultipleScaling {
				if err := checkCellPositions(cells); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateMonitorFields(ctx, monitorID, patch); err != nil {
			return err
		}
		if cells != nil {
			if err := s.diffCells(ctx, tx, m, existing, cells); err != nil {
				return err
			}
		}
		out, err = tx.MonitorByID(ctx, monitorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.broadcast.MonitorStatus(out, out.OwnerID)
	s.broadcast.MetricsChanged(out.OwnerID)
	return out, nil
}

// diffCells reconciles requested cells against existing memberships.
func (s *MonitorService) diffCells(ctx context.Context, tx Tx, parent *model.Monitor, existing []model.MonitorGroupCell, requested []CellSpec) error {
	want := make(map[uint64]CellSpec, len(requested))
	for _, spec := range requested {
		want[spec.MonitorID] = spec
	}
	have := make(map[uint64]model.MonitorGroupCell, len(existing))
	for _, cell := range existing {
		have[cell.MonitorID] = cell
	}
	for _, cell := range existing {
		spec, keep := want[cell.MonitorID]
		if !keep {
			// Detached cells fall back to SINGLE; their online counter
			// contribution is not carried over.
			if err := tx.DeleteCell(ctx, cell.ID); err != nil {
				return err
			}
			if err := tx.SetMonitorMultiple(ctx, cell.MonitorID, model.MultipleSingle); err != nil {
				return err
			}
			continue
		}
		if spec.Row != cell.Row || spec.Col != cell.Col {
			if err := tx.UpdateCellPosition(ctx, cell.ID, spec.Row, spec.Col); err != nil {
				return err
			}
		}
	}
	for _, spec := range requested {
		if _, exists := have[spec.MonitorID]; exists {
			continue
		}
		if err := s.attachCell(ctx, tx, parent, parent.OwnerID, spec); err != nil {
			return err
		}
	}
	return nil
}

// Status applies a device status report.  For a SUBORDINATE monitor the
// parent's online counter is adjusted and the parent's aggregate status
// recomputed: the parent goes online exactly when every cell is online,
// and each aggregate flip broadcasts exactly once.
func (s *MonitorService) Status(ctx context.Context, actor Actor, monitorID uint64, status model.MonitorStatus) error {
	if status != model.StatusOnline && status != model.StatusOffline {
		return BadRequest("unknown status %q", status)
	}
	type statusEvent struct {
		monitor *model.Monitor
		userID  uint64
	}
	var events []statusEvent
	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.MonitorByID(ctx, monitorID)
		if err == ErrNoRow {
			return NotFound("monitor %d not found", monitorID)
		}
		if err != nil {
			return err
		}
		if m.Multiple == model.MultipleSubordinate && m.Status != status {
			cell, err := tx.CellByMonitor(ctx, monitorID)
			if err != nil && err != ErrNoRow {
				return err
			}
			if err == nil {
				parent, err := tx.MonitorByID(ctx, cell.ParentID)
				if err != nil && err != ErrNoRow {
					return err
				}
				if err == nil {
					online := parent.GroupOnlineMonitors
					if status == model.StatusOnline {
						online++
					} else if online > 0 {
						online--
					}
					if err := tx.SetGroupOnline(ctx, parent.ID, online); err != nil {
						return err
					}
					parent.GroupOnlineMonitors = online
					siblings, err := tx.GroupCells(ctx, parent.ID)
					if err != nil {
						return err
					}
					aggregate := model.StatusOffline
					if int(online) == len(siblings) {
						aggregate = model.StatusOnline
					}
					// Broadcast only when the aggregate value actually
					// flips, to avoid redundant notifications.
					if parent.Status != aggregate {
						if err := tx.SetMonitorStatus(ctx, parent.ID, aggregate); err != nil {
							return err
						}
						parent.Status = aggregate
						events = append(events, statusEvent{monitor: parent, userID: parent.OwnerID})
					}
				}
			}
		}
		if err := tx.SetMonitorStatus(ctx, monitorID, status); err != nil {
			return err
		}
		m.Status = status
		events = append(events, statusEvent{monitor: m, userID: actor.ID})
		return nil
	})
	if err != nil {
		return err
	}
	for _, ev := range events {
		s.broadcast.MonitorStatus(ev.monitor, ev.userID)
	}
	return nil
}

// Favorite toggles the user-scoped favorite flag for a monitor.  It is
// idempotent against the current value when setting, and reports
// not-found when the row to remove does not exist.
func (s *MonitorService) Favorite(ctx context.Context, actor Actor, monitorID uint64, flag bool) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.MonitorByID(ctx, monitorID); err == ErrNoRow {
			return NotFound("monitor %d not found", monitorID)
		} else if err != nil {
			return err
		}
		exists, err := tx.FavoriteExists(ctx, actor.ID, monitorID)
		if err != nil {
			return err
		}
		if flag {
			if exists {
				return nil
			}
			return tx.InsertFavorite(ctx, &model.MonitorFavorite{UserID: actor.ID, MonitorID: monitorID})
		}
		affected, err := tx.DeleteFavorite(ctx, actor.ID, monitorID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return NotFound("monitor %d is not in favorites", monitorID)
		}
		return nil
	})
}

// Delete removes a monitor.  A group parent first detaches all of its
// cells back to SINGLE in the same transaction; the cells themselves are
// never deleted.
func (s *MonitorService) Delete(ctx context.Context, actor Actor, monitorID uint64) (int64, error) {
	var affected int64
	var ownerID uint64
	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.MonitorByID(ctx, monitorID)
		if err == ErrNoRow {
			return NotFound("monitor %d not found", monitorID)
		}
		if err != nil {
			return err
		}
		if !actor.Admin() && m.OwnerID != actor.ID {
			return NotFound("monitor %d not found", monitorID)
		}
		ownerID = m.OwnerID
		if m.Multiple.IsGroup() {
			cells, err := tx.GroupCells(ctx, monitorID)
			if err != nil {
				return err
			}
			for _, cell := range cells {
				if err := tx.DeleteCell(ctx, cell.ID); err != nil {
					return err
				}
				if err := tx.SetMonitorMultiple(ctx, cell.MonitorID, model.MultipleSingle); err != nil {
					return err
				}
			}
		}
		affected, err = tx.DeleteMonitor(ctx, monitorID)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.broadcast.MetricsChanged(ownerID)
	return affected, nil
}

// checkCellPositions validates a SCALING grid: scan in row-major order,
// reset the column-occupancy set whenever the row increases, reject on
// collision.
func checkCellPositions(cells []CellSpec) error {
	ordered := make([]CellSpec, len(cells))
	copy(ordered, cells)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].Row < ordered[i].Row ||
				(ordered[j].Row == ordered[i].Row && ordered[j].Col < ordered[i].Col) {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	occupied := make(map[uint32]bool)
	row := uint32(0)
	for i, cell := range ordered {
		if i == 0 || cell.Row > row {
			occupied = make(map[uint32]bool)
			row = cell.Row
		}
		if occupied[cell.Col] {
			return NotAcceptable("duplicate cell position (row=%d, col=%d)", cell.Row, cell.Col)
		}
		occupied[cell.Col] = true
	}
	return nil
}
