package model

import "time"

// WalletEntry is one immutable signed monetary movement for a user.
// Entries are appended inside the same transaction as the bid transition
// or top-up that caused them and are never updated or removed; a user's
// balance is the sum of their entries.
//
// Fields:
//  ID            - primary key identifier.
//  UserID        - user the movement belongs to.
//  AmountKopecks - signed amount in kopecks; negative is a debit.
//  Description   - human-readable reason for the movement.
//  BidID         - related bid, when the movement settles one (nullable).
//  CreatedAt     - creation timestamp.
type WalletEntry struct {
	ID            uint64    // wallet_entries.id
	UserID        uint64    // wallet_entries.user_id
	AmountKopecks int64     // wallet_entries.amount_kopecks
	Description   string    // wallet_entries.description
	BidID         *uint64   // wallet_entries.bid_id (nullable)
	CreatedAt     time.Time // wallet_entries.created_at
}
