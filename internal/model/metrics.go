package model

// Metrics is the per-user dashboard snapshot pushed over the realtime
// channel and served by the metrics endpoint. All counters are scoped
// to the user: monitors they own, bids they are party to, their ledger
// balance.
type Metrics struct {
	Monitors       int   `json:"monitors"`
	MonitorsOnline int   `json:"monitors_online"`
	BidsOutgoing   int   `json:"bids_outgoing"`
	BidsIncoming   int   `json:"bids_incoming"`
	BidsPending    int   `json:"bids_pending"`
	BalanceKopecks int64 `json:"balance_kopecks"`
}
