// Package queue defines message payloads exchanged over the message broker.
package queue

// BidPendingEvent is published when a new bid lands in a seller's
// approval queue. It contains enough information for downstream
// consumers to log or notify without querying the primary database.
type BidPendingEvent struct {
	BidID      uint64 `json:"bid_id"`
	Seq        uint64 `json:"seq"`
	BuyerID    uint64 `json:"buyer_id"`
	SellerID   uint64 `json:"seller_id"`
	MonitorID  uint64 `json:"monitor_id"`
	PlaylistID uint64 `json:"playlist_id"`
	DateWhen   string `json:"date_when"`
	DateBefore string `json:"date_before,omitempty"`
	SumKopecks int64  `json:"sum_kopecks"`
	CreatedAt  string `json:"created_at"`
}

// BidDecidedEvent is published when a bid's approval state is decided
// (allowed or denied) or reset by an administrator.
type BidDecidedEvent struct {
	BidID      uint64 `json:"bid_id"`
	Seq        uint64 `json:"seq"`
	BuyerID    uint64 `json:"buyer_id"`
	SellerID   uint64 `json:"seller_id"`
	MonitorID  uint64 `json:"monitor_id"`
	Approved   string `json:"approved"`
	SumKopecks int64  `json:"sum_kopecks"`
	DecidedAt  string `json:"decided_at"`
}
