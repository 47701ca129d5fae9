package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asgardex/asgardex-mobile-sub001/internal/balances"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/client"
	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/session"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

// WebSocket configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

const (
	sendBuffer = 256
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// EventType represents the type of WebSocket event.
type EventType string

const (
	// Session events
	EventSessionState  EventType = "session_state"
	EventKeystoreState EventType = "keystore_state"
	EventLedgerState   EventType = "ledger_state"

	// Detection events
	EventDetectionFinished EventType = "detection_finished"

	// Address and balance events
	EventAddressChanged  EventType = "address_changed"
	EventBalancesChanged EventType = "balances_changed"
)

// WSEvent is a WebSocket event message.
type WSEvent struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// WSSubscription represents a subscription request.
type WSSubscription struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Events []string `json:"events"` // Event types to subscribe to
}

// DetectionFinishedEvent is the payload of EventDetectionFinished.
type DetectionFinishedEvent struct {
	Chain   chain.Chain   `json:"chain,omitempty"`
	Address string        `json:"address,omitempty"`
	Error   string        `json:"error,omitempty"`
	Device  *ledger.Error `json:"device,omitempty"`
}

// AddressChangedEvent is the payload of EventAddressChanged.
type AddressChangedEvent struct {
	Chain   chain.Chain           `json:"chain"`
	Address *wallet.WalletAddress `json:"address"`
}

// BalancesChangedEvent is the payload of EventBalancesChanged.
type BalancesChangedEvent struct {
	Chain chain.Chain    `json:"chain"`
	State balances.State `json:"state"`
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[EventType]bool
	mu            sync.RWMutex
	hub           *WSHub
}

// subscribed reports whether the client wants events of type t. A client
// without subscriptions receives everything.
func (c *WSClient) subscribed(t EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[t]
}

// WSHub manages all WebSocket connections.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan *WSEvent
	register   chan *WSClient
	unregister chan *WSClient
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	metrics    *metrics.Metrics
	log        *logging.Logger
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub. m may be nil.
func NewWSHub(m *metrics.Metrics) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan *WSEvent, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		metrics:    m,
		log:        logging.GetDefault().Component("ws"),
	}
}

// Run starts the hub event loop. It returns after Stop.
func (h *WSHub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClientConnected(1)
			h.log.Debug("WebSocket client connected", "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("WebSocket client disconnected", "clients", n)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("Failed to marshal event", "type", event.Type, "error", err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				if !client.subscribed(event.Type) {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, disconnect
					h.log.Warn("Dropping slow WebSocket client", "type", event.Type)
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WSHub) dropLocked(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.WSClientConnected(-1)
}

// Stop closes every client connection and ends Run. Run must have been
// started.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// Broadcast sends an event to all subscribed clients.
func (h *WSHub) Broadcast(eventType EventType, data interface{}) {
	event := &WSEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("Broadcast channel full, dropping event", "type", eventType)
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) add(client *WSClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

func (h *WSHub) remove(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// handleWS handles WebSocket connections. A new client first receives the
// current session, keystore and ledger state.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		subscriptions: make(map[EventType]bool),
		hub:           s.wsHub,
	}
	for _, ev := range s.snapshotEvents() {
		data, err := json.Marshal(ev)
		if err != nil {
			s.log.Error("Failed to marshal snapshot", "type", ev.Type, "error", err)
			continue
		}
		client.send <- data
	}

	if !s.wsHub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// snapshotEvents is the current state as events.
func (s *Server) snapshotEvents() []*WSEvent {
	now := time.Now().Unix()
	var events []*WSEvent
	if s.session != nil {
		events = append(events, &WSEvent{Type: EventSessionState, Data: s.session.State(), Timestamp: now})
	}
	if s.wallet != nil {
		events = append(events, &WSEvent{Type: EventKeystoreState, Data: s.wallet.State(), Timestamp: now})
	}
	if s.ledger != nil {
		events = append(events, &WSEvent{Type: EventLedgerState, Data: s.ledger.State(), Timestamp: now})
	}
	return events
}

// watch forwards session, keystore, ledger, address and balance changes to
// the hub.
func (s *Server) watch() {
	hub := s.wsHub
	var unsubs []func()
	if s.session != nil {
		unsubs = append(unsubs, s.session.Subscribe(func(st session.State) {
			hub.Broadcast(EventSessionState, st)
		}))
	}
	if s.wallet != nil {
		unsubs = append(unsubs, s.wallet.Subscribe(func(st wallet.State) {
			hub.Broadcast(EventKeystoreState, st)
		}))
	}
	if s.ledger != nil {
		unsubs = append(unsubs, s.ledger.Subscribe(func(st ledger.State) {
			hub.Broadcast(EventLedgerState, st)
		}))
	}
	for c, cc := range s.clients {
		unsubs = append(unsubs, cc.Address.Subscribe(func(ra client.ResolvedAddress) {
			ev := AddressChangedEvent{Chain: c}
			if ra.Valid {
				addr := ra.Address
				ev.Address = &addr
			}
			hub.Broadcast(EventAddressChanged, ev)
		}))
	}
	if s.balances != nil {
		s.balances.OnChange(func(c chain.Chain, st balances.State) {
			hub.Broadcast(EventBalancesChanged, BalancesChangedEvent{Chain: c, State: st})
		})
		unsubs = append(unsubs, func() { s.balances.OnChange(nil) })
	}

	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsubs...)
	s.mu.Unlock()
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket read error", "error", err)
			}
			break
		}

		// Handle subscription messages
		var sub WSSubscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.handleSubscription(&sub)
		}
	}
}

// writePump writes messages to the WebSocket connection. Each event is its
// own text message.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleSubscription processes subscription requests.
func (c *WSClient) handleSubscription(sub *WSSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, eventStr := range sub.Events {
		eventType := EventType(eventStr)
		switch sub.Action {
		case "subscribe":
			c.subscriptions[eventType] = true
		case "unsubscribe":
			delete(c.subscriptions, eventType)
		}
	}
}
