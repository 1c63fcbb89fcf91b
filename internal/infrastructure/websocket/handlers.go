package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"auction-engine/internal/api/presenter"
	"auction-engine/internal/domain"
	"auction-engine/internal/money"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const requestTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Request is one client message. Amounts use the same wire form as the HTTP API.
type Request struct {
	Type      string               `json:"type"`
	RequestID string               `json:"request_id,omitempty"`
	Amount    *presenter.MoneyView `json:"amount,omitempty"`
	MaxAmount *presenter.MoneyView `json:"max_amount,omitempty"`
	Enabled   *bool                `json:"enabled,omitempty"`
}

// Reply answers exactly one Request.
type Reply struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Auction   *presenter.AuctionView `json:"auction,omitempty"`
	Bid       *presenter.BidView     `json:"bid,omitempty"`
	AutoBid   *presenter.AutoBidView `json:"auto_bid,omitempty"`
	Error     *presenter.ErrorView   `json:"error,omitempty"`
}

type WebSocketHandler struct {
	bidService     *services.BidService
	auctionManager *services.AuctionManager
	connManager    *ConnectionManager
	log            logger.Logger
}

func NewWebSocketHandler(bidService *services.BidService, auctionManager *services.AuctionManager,
	connManager *ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bidService:     bidService,
		auctionManager: auctionManager,
		connManager:    connManager,
		log:            log,
	}
}

// HandleConnection serves /ws/auction/{auctionID}. The store comes from the
// X-Store-ID header or store_id query parameter, the bidder from customer_id.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID, err := money.ParseID("auction id", mux.Vars(r)["auctionID"])
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	storeID := firstNonEmpty(r.Header.Get("X-Store-ID"), r.URL.Query().Get("store_id"))
	customerID := firstNonEmpty(r.URL.Query().Get("customer_id"), r.Header.Get("X-Actor-ID"))
	if customerID == "" {
		writeHTTPError(w, domain.InvalidArgument("customer_id required"))
		return
	}

	auction, err := h.auctionManager.GetAuction(r.Context(), storeID, auctionID)
	if err != nil {
		h.log.Error("Failed to find auction", "error", err, "auction_id", auctionID)
		writeHTTPError(w, err)
		return
	}
	if !auction.Status.AcceptsBids() {
		h.log.Info("Rejected connection - auction not open for bidding", "auction_id", auctionID, "status", auction.Status.String())
		writeHTTPError(w, domain.FailedPrecondition("auction not open for bidding (status %s)", auction.Status))
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(ws, storeID, customerID, auctionID)
	h.connManager.RegisterConnection(conn)

	go h.handleMessages(conn)
}

// HandleConnectionCount serves /ws/auction/{auctionID}/connections with the
// number of bidders connected to the auction through this gateway.
func (h *WebSocketHandler) HandleConnectionCount(w http.ResponseWriter, r *http.Request) {
	auctionID, err := money.ParseID("auction id", mux.Vars(r)["auctionID"])
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ConnectionCount{
		AuctionID:   auctionID,
		Connections: h.connManager.CountForAuction(auctionID),
	})
}

type ConnectionCount struct {
	AuctionID   string `json:"auction_id"`
	Connections int    `json:"connections"`
}

func (h *WebSocketHandler) handleMessages(conn *Connection) {
	defer func() {
		h.connManager.UnregisterConnection(conn)
		conn.Close()
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Error("Failed to read message", "error", err, "auction_id", conn.AuctionID())
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			h.send(conn, errorReply("", domain.InvalidArgument("malformed message")))
			continue
		}

		h.send(conn, h.dispatch(conn, req))
	}
}

func (h *WebSocketHandler) dispatch(conn *Connection, req Request) Reply {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	ctx = domain.WithActor(ctx, conn.CustomerID())

	switch req.Type {
	case "place_bid":
		return h.handleBidMessage(ctx, conn, req)
	case "set_auto_bid":
		return h.handleAutoBidMessage(ctx, conn, req)
	case "ping":
		return Reply{Type: "pong", RequestID: req.RequestID}
	default:
		return errorReply(req.RequestID, domain.InvalidArgument("unknown message type %q", req.Type))
	}
}

func (h *WebSocketHandler) handleBidMessage(ctx context.Context, conn *Connection, req Request) Reply {
	if req.Amount == nil {
		return errorReply(req.RequestID, domain.InvalidArgument("amount is required"))
	}
	amount, err := req.Amount.ToDomain("")
	if err != nil {
		return errorReply(req.RequestID, err)
	}

	auction, bid, err := h.bidService.PlaceBid(ctx, conn.StoreID(), conn.AuctionID(), conn.CustomerID(), amount)
	if err != nil {
		return errorReply(req.RequestID, err)
	}
	auctionView := presenter.Auction(auction)
	bidView := presenter.Bid(bid)
	return Reply{Type: "bid_result", RequestID: req.RequestID, Auction: &auctionView, Bid: &bidView}
}

func (h *WebSocketHandler) handleAutoBidMessage(ctx context.Context, conn *Connection, req Request) Reply {
	enabled := req.Enabled == nil || *req.Enabled
	maxAmount, err := presenter.OptionalToDomain(req.MaxAmount, "")
	if err != nil {
		return errorReply(req.RequestID, err)
	}

	auction, autoBid, err := h.bidService.SetAutoBid(ctx, conn.StoreID(), conn.AuctionID(), conn.CustomerID(), maxAmount, enabled)
	if err != nil {
		return errorReply(req.RequestID, err)
	}
	auctionView := presenter.Auction(auction)
	autoBidView := presenter.AutoBid(autoBid)
	return Reply{Type: "auto_bid_result", RequestID: req.RequestID, Auction: &auctionView, AutoBid: &autoBidView}
}

func (h *WebSocketHandler) send(conn *Connection, reply Reply) {
	if err := conn.Send(reply); err != nil {
		h.log.Error("Failed to send reply", "error", err, "type", reply.Type, "auction_id", conn.AuctionID())
	}
}

func errorReply(requestID string, err error) Reply {
	view := presenter.Error(err)
	return Reply{Type: "error", RequestID: requestID, Error: &view}
}

func writeHTTPError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(presenter.Status(err))
	_ = json.NewEncoder(w).Encode(presenter.Error(err))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Connection is one bidder's socket for one auction. Writes are serialized.
type Connection struct {
	ws         *websocket.Conn
	writeMu    sync.Mutex
	storeID    string
	customerID string
	auctionID  string
}

func NewConnection(ws *websocket.Conn, storeID, customerID, auctionID string) *Connection {
	return &Connection{
		ws:         ws,
		storeID:    storeID,
		customerID: customerID,
		auctionID:  auctionID,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(message)
}

func (c *Connection) Close() error {
	return c.ws.Close()
}

func (c *Connection) StoreID() string {
	return c.storeID
}

func (c *Connection) CustomerID() string {
	return c.customerID
}

func (c *Connection) AuctionID() string {
	return c.auctionID
}
