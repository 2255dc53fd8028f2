// Package broadcast pushes incremental state changes to connected
// websocket clients. Each client is indexed by its authenticated user
// and by the monitors it explicitly subscribed to, so bid and status
// events reach exactly the parties that display them.
package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins — adjust for production if needed
		return true
	},
}

const (
	writeWait = 10 * time.Second
	sendQueue = 32
)

// Reader serves the queries the hub runs when composing wallet and
// metrics events. Broadcasts happen after the triggering transaction
// committed, so these reads observe the settled state.
type Reader interface {
	WalletBalance(ctx context.Context, userID uint64) (int64, error)
	MetricsFor(ctx context.Context, userID uint64) (*model.Metrics, error)
}

// Event is the wire envelope pushed to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   uint64
	monitors map[uint64]struct{}

	// mu guards closed and the send channel's lifecycle. A broadcast
	// snapshots its targets before sending, so a client may disconnect
	// in between; enqueue must never write to a closed channel.
	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// enqueue queues a payload for the write loop. Payloads for a client
// that already disconnected are dropped; a client with a full queue
// loses its connection instead of blocking the broadcast.
func (cl *client) enqueue(payload []byte) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closed {
		return
	}
	select {
	case cl.send <- payload:
	default:
		_ = cl.conn.Close()
	}
}

// subscribeMsg is the only message clients send: watch or unwatch one
// monitor's realtime stream.
type subscribeMsg struct {
	Action    string `json:"action"` // "subscribe" | "unsubscribe"
	MonitorID uint64 `json:"monitor_id"`
}

// Hub fans events out to registered clients. All methods are safe for
// concurrent use; a slow client loses its connection rather than
// blocking the rest.
type Hub struct {
	mu        sync.RWMutex
	byUser    map[uint64]map[*client]struct{}
	byMonitor map[uint64]map[*client]struct{}
	reader    Reader
}

// NewHub builds a Hub over the given read-side queries.
func NewHub(reader Reader) *Hub {
	return &Hub{
		byUser:    make(map[uint64]map[*client]struct{}),
		byMonitor: make(map[uint64]map[*client]struct{}),
		reader:    reader,
	}
}

// ServeWS upgrades the request and runs the connection until the client
// disconnects. The caller must have authenticated the request; userID
// is the resolved identity.
func (h *Hub) ServeWS(c echo.Context, userID uint64) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &client{
		hub:      h,
		conn:     conn,
		userID:   userID,
		send:     make(chan []byte, sendQueue),
		monitors: make(map[uint64]struct{}),
	}
	h.register(cl)
	go cl.writeLoop()
	cl.readLoop()
	return nil
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[cl.userID] == nil {
		h.byUser[cl.userID] = make(map[*client]struct{})
	}
	h.byUser[cl.userID][cl] = struct{}{}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.byUser[cl.userID]; set != nil {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.byUser, cl.userID)
		}
	}
	for mid := range cl.monitors {
		if set := h.byMonitor[mid]; set != nil {
			delete(set, cl)
			if len(set) == 0 {
				delete(h.byMonitor, mid)
			}
		}
	}
	cl.mu.Lock()
	if !cl.closed {
		cl.closed = true
		close(cl.send)
	}
	cl.mu.Unlock()
}

func (h *Hub) subscribe(cl *client, monitorID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byMonitor[monitorID] == nil {
		h.byMonitor[monitorID] = make(map[*client]struct{})
	}
	h.byMonitor[monitorID][cl] = struct{}{}
	cl.monitors[monitorID] = struct{}{}
}

func (h *Hub) unsubscribe(cl *client, monitorID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(cl.monitors, monitorID)
	if set := h.byMonitor[monitorID]; set != nil {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.byMonitor, monitorID)
		}
	}
}

func (cl *client) readLoop() {
	defer func() {
		cl.hub.unregister(cl)
		_ = cl.conn.Close()
	}()
	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "subscribe":
			cl.hub.subscribe(cl, msg.MonitorID)
		case "unsubscribe":
			cl.hub.unsubscribe(cl, msg.MonitorID)
		}
	}
}

func (cl *client) writeLoop() {
	for payload := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = cl.conn.Close()
			return
		}
	}
	_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = cl.conn.Close()
}

// sendTo marshals the event once and queues it on every target client.
// Clients whose queue is full are dropped; the read loop notices the
// closed connection and cleans up.
func (h *Hub) sendTo(targets map[*client]struct{}, ev Event) {
	if len(targets) == 0 {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("broadcast: marshal %s event: %v", ev.Type, err)
		return
	}
	for cl := range targets {
		cl.enqueue(payload)
	}
}

// collect gathers the union of clients for the given users and monitors
// under one read lock.
func (h *Hub) collect(userIDs []uint64, monitorIDs []uint64) map[*client]struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[*client]struct{})
	for _, uid := range userIDs {
		for cl := range h.byUser[uid] {
			out[cl] = struct{}{}
		}
	}
	for _, mid := range monitorIDs {
		for cl := range h.byMonitor[mid] {
			out[cl] = struct{}{}
		}
	}
	return out
}

func bidParties(bid *model.Bid) []uint64 {
	ids := []uint64{bid.SellerID, bid.UserID}
	if bid.BuyerID != nil {
		ids = append(ids, *bid.BuyerID)
	}
	return ids
}

// BidChanged notifies the bid's parties and the monitor's watchers that
// a bid was created or its state changed.
func (h *Hub) BidChanged(bid *model.Bid) {
	targets := h.collect(bidParties(bid), []uint64{bid.MonitorID})
	h.sendTo(targets, Event{Type: "bid.changed", Data: bid})
}

// BidRemoved notifies the bid's parties and the monitor's watchers that
// a bid was removed (deleted or denied).
func (h *Hub) BidRemoved(bid *model.Bid) {
	targets := h.collect(bidParties(bid), []uint64{bid.MonitorID})
	h.sendTo(targets, Event{Type: "bid.removed", Data: map[string]uint64{"id": bid.ID}})
}

// MonitorStatus pushes a monitor's current state to its watchers and to
// the given interested user.
func (h *Hub) MonitorStatus(m *model.Monitor, userID uint64) {
	targets := h.collect([]uint64{userID, m.OwnerID}, []uint64{m.ID})
	h.sendTo(targets, Event{Type: "monitor.status", Data: m})
}

// WalletChanged recomputes and pushes the user's balance.
func (h *Hub) WalletChanged(userID uint64) {
	balance, err := h.reader.WalletBalance(context.Background(), userID)
	if err != nil {
		log.Printf("broadcast: wallet balance for user %d: %v", userID, err)
		return
	}
	targets := h.collect([]uint64{userID}, nil)
	h.sendTo(targets, Event{Type: "wallet.balance", Data: map[string]int64{"balance_kopecks": balance}})
}

// MetricsChanged recomputes and pushes the user's dashboard counters.
func (h *Hub) MetricsChanged(userID uint64) {
	metrics, err := h.reader.MetricsFor(context.Background(), userID)
	if err != nil {
		log.Printf("broadcast: metrics for user %d: %v", userID, err)
		return
	}
	targets := h.collect([]uint64{userID}, nil)
	h.sendTo(targets, Event{Type: "metrics", Data: metrics})
}
