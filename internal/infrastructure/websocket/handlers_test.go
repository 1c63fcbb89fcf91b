package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/audit"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type gateway struct {
	server      *httptest.Server
	manager     *services.AuctionManager
	connManager *ConnectionManager
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	customers := memory.NewCustomers(false)
	customers.Allow("store-1", "alice", "bob")
	sink := audit.NewLogSink(log)
	resolver := services.NewResolver(log)

	manager := services.NewAuctionManager(store, sink, log)
	bids := services.NewBidService(store, customers, resolver, sink, log)
	connManager := NewConnectionManager(log)

	router := mux.NewRouter()
	handler := NewWebSocketHandler(bids, manager, connManager, log)
	router.HandleFunc("/ws/auction/{auctionID}", handler.HandleConnection)
	router.HandleFunc("/ws/auction/{auctionID}/connections", handler.HandleConnectionCount).Methods(http.MethodGet)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &gateway{server: server, manager: manager, connManager: connManager}
}

func (g *gateway) createRunning(t *testing.T) *domain.Auction {
	t.Helper()
	now := time.Now()
	a, err := g.manager.CreateAuction(context.Background(), "store-1", services.AuctionParams{
		ProductID:    "prod-1",
		SkuID:        "sku-1",
		Type:         domain.AuctionTypeOpen,
		Title:        "Vintage camera",
		StartAt:      now.Add(-time.Minute),
		EndAt:        now.Add(time.Hour),
		StartPrice:   domain.NewMoney(100, "JPY"),
		BidIncrement: domain.NewMoney(10, "JPY"),
	})
	assert.NoError(t, err)
	return a
}

func (g *gateway) dial(t *testing.T, auctionID, customerID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/auction/" + auctionID + "?customer_id=" + customerID
	header := http.Header{}
	header.Set("X-Store-ID", "store-1")
	return websocket.DefaultDialer.Dial(url, header)
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg string) Reply {
	t.Helper()
	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply Reply
	assert.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestGateway_RequestReply(t *testing.T) {
	g := newGateway(t)
	a := g.createRunning(t)

	alice, _, err := g.dial(t, a.ID, "alice")
	assert.NoError(t, err)
	defer alice.Close()

	reply := roundTrip(t, alice, `{"type":"ping","request_id":"r0"}`)
	check.Equal(t, "pong", reply.Type)
	check.Equal(t, "r0", reply.RequestID)

	reply = roundTrip(t, alice, `{"type":"place_bid","request_id":"r1","amount":{"amount":"110","currency":"JPY"}}`)
	assert.Equal(t, "bid_result", reply.Type)
	check.Equal(t, "r1", reply.RequestID)
	check.Equal(t, "alice", reply.Bid.CustomerID)
	check.Equal(t, "110", reply.Auction.CurrentPrice.Amount)

	reply = roundTrip(t, alice, `{"type":"place_bid","request_id":"r2","amount":{"amount":"115","currency":"JPY"}}`)
	assert.Equal(t, "error", reply.Type)
	check.Equal(t, "invalid_argument", reply.Error.Code)
	check.Equal(t, "r2", reply.RequestID)

	bob, _, err := g.dial(t, a.ID, "bob")
	assert.NoError(t, err)
	defer bob.Close()

	reply = roundTrip(t, bob, `{"type":"set_auto_bid","request_id":"r3","max_amount":{"amount":"300","currency":"JPY"}}`)
	assert.Equal(t, "auto_bid_result", reply.Type)
	check.Equal(t, "active", reply.AutoBid.Status)
	check.Equal(t, "120", reply.Auction.CurrentPrice.Amount)

	reply = roundTrip(t, bob, `{"type":"dance"}`)
	check.Equal(t, "error", reply.Type)

	reply = roundTrip(t, bob, `not json`)
	check.Equal(t, "error", reply.Type)
	check.Equal(t, "malformed message", reply.Error.Error)

	check.Equal(t, 2, g.connManager.CountForAuction(a.ID))
	check.Equal(t, 2, g.connectionCount(t, a.ID))
}

func (g *gateway) connectionCount(t *testing.T, auctionID string) int {
	t.Helper()
	resp, err := http.Get(g.server.URL + "/ws/auction/" + auctionID + "/connections")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body ConnectionCount
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	check.Equal(t, auctionID, body.AuctionID)
	return body.Connections
}

func TestGateway_ConnectionCountRejectsBadID(t *testing.T) {
	g := newGateway(t)
	resp, err := http.Get(g.server.URL + "/ws/auction/not-an-id/connections")
	assert.NoError(t, err)
	defer resp.Body.Close()
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_IneligibleBidder(t *testing.T) {
	g := newGateway(t)
	a := g.createRunning(t)

	conn, _, err := g.dial(t, a.ID, "mallory")
	assert.NoError(t, err)
	defer conn.Close()

	reply := roundTrip(t, conn, `{"type":"place_bid","amount":{"amount":"200","currency":"JPY"}}`)
	check.Equal(t, "error", reply.Type)
	check.Equal(t, "permission_denied", reply.Error.Code)
}

func TestGateway_RejectsHandshake(t *testing.T) {
	g := newGateway(t)
	a := g.createRunning(t)

	_, resp, err := g.dial(t, uuid.NewString(), "alice")
	check.Error(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = g.dial(t, "not-an-id", "alice")
	check.Error(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = g.dial(t, a.ID, "")
	check.Error(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = g.manager.CloseAuction(context.Background(), "store-1", a.ID)
	assert.NoError(t, err)
	_, resp, err = g.dial(t, a.ID, "alice")
	check.Error(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConnectionManager_CloseAll(t *testing.T) {
	g := newGateway(t)
	a := g.createRunning(t)

	conn, _, err := g.dial(t, a.ID, "alice")
	assert.NoError(t, err)
	defer conn.Close()
	roundTrip(t, conn, `{"type":"ping"}`)
	check.Equal(t, 1, g.connManager.CountForAuction(a.ID))

	g.connManager.CloseAll()

	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	check.Error(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for g.connManager.CountForAuction(a.ID) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	check.Equal(t, 0, g.connManager.CountForAuction(a.ID))
}
