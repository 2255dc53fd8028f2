package model

import "time"

// Playlist is an ordered collection of media items owned by a user.
// Its total duration (the sum of item durations) feeds the bid charge
// formula.
//
// Fields:
//  ID          - primary key identifier.
//  OwnerID     - user who owns the playlist.
//  Name        - playlist name, unique per owner.
//  Description - optional free-form description.
//  DurationSec - cached total duration in seconds (sum of item durations).
//  CreatedAt   - creation timestamp.
//  UpdatedAt   - last update timestamp.
type Playlist struct {
	ID          uint64    // playlists.id
	OwnerID     uint64    // playlists.owner_id
	Name        string    // playlists.name
	Description *string   // playlists.description (nullable)
	DurationSec int64     // playlists.duration_sec
	CreatedAt   time.Time // playlists.created_at
	UpdatedAt   time.Time // playlists.updated_at
}

// PlaylistItem is one media entry inside a playlist.
//
// Fields:
//  ID          - primary key identifier.
//  PlaylistID  - owning playlist.
//  Name        - media file name or external reference.
//  DurationSec - playback duration of this item in seconds.
//  Position    - zero-based ordering inside the playlist.
//  CreatedAt   - creation timestamp.
type PlaylistItem struct {
	ID          uint64    // playlist_items.id
	PlaylistID  uint64    // playlist_items.playlist_id
	Name        string    // playlist_items.name
	DurationSec int64     // playlist_items.duration_sec
	Position    uint32    // playlist_items.position
	CreatedAt   time.Time // playlist_items.created_at
}
