// Package repository implements MySQL persistence for monitors, group
// cells, bids, playlists, wallet entries and users. Repositories expose
// plain methods running on *sql.DB for reads and *Tx variants that
// participate in an explicit caller-owned transaction. Sentinel errors
// let higher layers distinguish failure scenarios without string
// matching.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting a
// playlist that is still attached to a monitor. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
