package model

import "time"

// MonitorMultiple enumerates how a monitor participates in grouping.
// SINGLE monitors behave independently.  SCALING and MIRROR are virtual
// group monitors without physical presence that own a set of SUBORDINATE
// cell monitors arranged on a (row, col) grid.  A SUBORDINATE monitor
// belongs to exactly one group parent and cannot own subordinates itself.
type MonitorMultiple string

const (
	MultipleSingle      MonitorMultiple = "SINGLE"
	MultipleScaling     MonitorMultiple = "SCALING"
	MultipleMirror      MonitorMultiple = "MIRROR"
	MultipleSubordinate MonitorMultiple = "SUBORDINATE"
)

// IsGroup reports whether the multiplicity denotes a virtual group parent.
func (m MonitorMultiple) IsGroup() bool {
	return m == MultipleScaling || m == MultipleMirror
}

// MonitorStatus is the online/offline state reported by the device (or
// aggregated from subordinate cells for group monitors).
type MonitorStatus string

const (
	StatusOnline  MonitorStatus = "online"
	StatusOffline MonitorStatus = "offline"
)

// Monitor represents a display device or a virtual group of devices
// owned by a seller.  This struct corresponds to a row in the
// `monitors` table.
//
// Fields:
//  ID                  - primary key identifier.
//  OwnerID             - user ID of the monitor owner (seller).
//  Name                - display name, unique per owner.
//  Status              - online/offline state.
//  Multiple            - multiplicity mode (SINGLE, SCALING, MIRROR, SUBORDINATE).
//  PlaylistID          - playlist currently attached (nil when idle).
//  GroupOnlineMonitors - count of currently online subordinate cells,
//                        maintained incrementally as cell status changes.
//  Width, Height       - physical resolution; required for SINGLE monitors,
//                        nil for virtual group monitors.
//  Price1s             - rental price per second of playback, in kopecks.
//  MinWarranty         - guaranteed seconds of playback per playlist loop.
//  CreatedAt           - creation timestamp.
//  UpdatedAt           - last update timestamp.
type Monitor struct {
	ID                  uint64          // monitors.id
	OwnerID             uint64          // monitors.owner_id
	Name                string          // monitors.name
	Status              MonitorStatus   // monitors.status
	Multiple            MonitorMultiple // monitors.multiple
	PlaylistID          *uint64         // monitors.playlist_id (nullable)
	GroupOnlineMonitors uint32          // monitors.group_online_monitors
	Width               *uint32         // monitors.width (nullable)
	Height              *uint32         // monitors.height (nullable)
	Price1s             int64           // monitors.price_1s (kopecks per second)
	MinWarranty         int64           // monitors.min_warranty (seconds)
	CreatedAt           time.Time       // monitors.created_at
	UpdatedAt           time.Time       // monitors.updated_at
}

// MonitorGroupCell is the join record placing one subordinate monitor at
// a (row, col) position inside a group parent.  One row exists per
// subordinate membership; the record never exists independent of both
// monitors.
//
// Fields:
//  ID        - primary key identifier.
//  ParentID  - group monitor that owns the cell.
//  MonitorID - the subordinate monitor occupying the cell.
//  Row, Col  - zero-based grid position inside the group.
//  UserID    - owner of the group at the time the cell was registered.
//  CreatedAt - creation timestamp.
type MonitorGroupCell struct {
	ID        uint64    // monitor_group_cells.id
	ParentID  uint64    // monitor_group_cells.parent_id
	MonitorID uint64    // monitor_group_cells.monitor_id
	Row       uint32    // monitor_group_cells.row_no
	Col       uint32    // monitor_group_cells.col_no
	UserID    uint64    // monitor_group_cells.user_id
	CreatedAt time.Time // monitor_group_cells.created_at
}

// MonitorFavorite is a user-scoped favorite join row.
//
// Fields:
//  ID        - primary key identifier.
//  UserID    - user who favourited the monitor.
//  MonitorID - the favourited monitor.
//  CreatedAt - creation timestamp.
type MonitorFavorite struct {
	ID        uint64    // monitor_favorites.id
	UserID    uint64    // monitor_favorites.user_id
	MonitorID uint64    // monitor_favorites.monitor_id
	CreatedAt time.Time // monitor_favorites.created_at
}
