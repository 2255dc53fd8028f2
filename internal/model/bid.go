package model

import "time"

// BidApproved is the approval state of a bid.  It drives all financial
// and topology side effects.  Transitions into ALLOWED or DENIED execute
// their effects exactly once, on the transition itself; an administrator
// may reset a decision back to NOT_PROCESSED (notify-only).
type BidApproved string

const (
	ApprovedNotProcessed BidApproved = "NOT_PROCESSED"
	ApprovedAllowed      BidApproved = "ALLOWED"
	ApprovedDenied       BidApproved = "DENIED"
)

// BidStatus is the operational status of a bid, independent of approval.
type BidStatus string

const (
	BidOK      BidStatus = "OK"
	BidWaiting BidStatus = "WAITING"
)

// Bid is a request to show one playlist on one monitor for a time
// window, with an approval workflow and an associated charge.  The
// monitor and playlist references are immutable after creation; only
// approval, status and hide may change.
//
// Fields:
//  ID             - primary key identifier.
//  Seq            - monotonically increasing sequence number (display only).
//  BuyerID        - paying user; nil for self-bids placed by the monitor owner.
//  SellerID       - monitor owner receiving the payment.
//  UserID         - acting user who created the bid.
//  MonitorID      - target monitor (immutable).
//  PlaylistID     - playlist to show (immutable).
//  ParentBidID    - set only on auto-generated sub-bids fanned out across a
//                   group; such bids carry Hide=true and are excluded from
//                   listings.
//  Hide           - hides auto-generated sub-bids from listings.
//  Approved       - approval state (NOT_PROCESSED, ALLOWED, DENIED).
//  Status         - operational status (OK, WAITING).
//  DateWhen       - start of the rental window.
//  DateBefore     - end of the window; nil means open-ended.
//  PlaylistChange - whether a busy monitor switches immediately or waits for
//                   its current content to finish.
//  SumKopecks     - charge moved from buyer to seller, computed at creation
//                   from monitor pricing and window; zero for self-bids.
//  CreatedAt      - creation timestamp.
//  UpdatedAt      - last update timestamp.
type Bid struct {
	ID             uint64      // bids.id
	Seq            uint64      // bids.seq
	BuyerID        *uint64     // bids.buyer_id (nullable)
	SellerID       uint64      // bids.seller_id
	UserID         uint64      // bids.user_id
	MonitorID      uint64      // bids.monitor_id
	PlaylistID     uint64      // bids.playlist_id
	ParentBidID    *uint64     // bids.parent_bid_id (nullable)
	Hide           bool        // bids.hide
	Approved       BidApproved // bids.approved
	Status         BidStatus   // bids.status
	DateWhen       time.Time   // bids.date_when
	DateBefore     *time.Time  // bids.date_before (nullable)
	PlaylistChange bool        // bids.playlist_change
	SumKopecks     int64       // bids.sum_kopecks
	CreatedAt      time.Time   // bids.created_at
	UpdatedAt      time.Time   // bids.updated_at

	// Eagerly loaded relations.  Populated only when the repository is
	// asked for the side-effect relation set; nil otherwise.
	Buyer  *User
	Seller *User
	Actor  *User
}
