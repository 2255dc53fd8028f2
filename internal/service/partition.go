package service

import (
	"errors"
	"sort"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// ErrNotPartitionable signals that a group's cells cannot receive the
// requested playlist at all.  The bid engine surfaces it as a
// business-rule violation.
var ErrNotPartitionable = errors.New("group is not partitionable")

// Partitioner decides which subordinate cells of a group monitor
// receive a sub-bid during fan-out.  Implementations return the chosen
// cells or ErrNotPartitionable when no valid assignment exists.
type Partitioner interface {
	Partition(parent *model.Monitor, cells []model.MonitorGroupCell, pl *model.Playlist) ([]model.MonitorGroupCell, error)
}

// GridPartitioner is the default partitioning strategy.
//
// MIRROR groups repeat the full playlist on every cell, so every cell is
// selected.  SCALING groups stretch the content across the grid; every
// registered cell receives its slice, ordered row-major so that
// downstream renderers can map slice index to grid position.  A group
// with no registered cells is not partitionable.
type GridPartitioner struct{}

func (GridPartitioner) Partition(parent *model.Monitor, cells []model.MonitorGroupCell, pl *model.Playlist) ([]model.MonitorGroupCell, error) {
	if len(cells) == 0 {
		return nil, ErrNotPartitionable
	}
	out := make([]model.MonitorGroupCell, len(cells))
	copy(out, cells)
	if parent.Multiple == model.MultipleScaling {
		sort.Slice(out, func(i, j int) bool {
			if out[i].Row != out[j].Row {
				return out[i].Row < out[j].Row
			}
			return out[i].Col < out[j].Col
		})
	}
	return out, nil
}
