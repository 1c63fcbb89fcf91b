package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-engine/internal/api/presenter"
	"auction-engine/internal/infrastructure/audit"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	customers := memory.NewCustomers(false)
	customers.Allow("store-1", "alice", "bob")
	sink := audit.NewLogSink(log)
	resolver := services.NewResolver(log)

	h := NewAuctionHandler(
		services.NewAuctionManager(store, sink, log),
		services.NewBidService(store, customers, resolver, sink, log),
		services.NewAuctionScheduler(store, resolver, sink, log),
		10,
		log,
	)

	e := echo.New()
	api := e.Group("/api/v1", ActorMiddleware)
	h.Register(api)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(HeaderStoreID, "store-1")
	req.Header.Set(HeaderActorID, "admin-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func createRunning(t *testing.T, e *echo.Echo) presenter.AuctionView {
	t.Helper()
	now := time.Now().UTC()
	body := `{
		"product_id": "prod-1",
		"sku_id": "sku-1",
		"auction_type": "open",
		"title": "Vintage camera",
		"start_at": "` + now.Add(-time.Minute).Format(time.RFC3339) + `",
		"end_at": "` + now.Add(time.Hour).Format(time.RFC3339) + `",
		"start_price": {"amount": "100", "currency": "JPY"},
		"bid_increment": {"amount": "10"}
	}`
	rec := do(t, e, http.MethodPost, "/api/v1/auctions", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var view presenter.AuctionView
	decode(t, rec, &view)
	return view
}

func TestAuctionHandler_CreateAndGet(t *testing.T) {
	e := newServer(t)
	created := createRunning(t, e)

	check.Equal(t, "running", created.Status)
	check.Equal(t, "open", created.Type)
	check.Equal(t, presenter.MoneyView{Amount: "100", Currency: "JPY"}, created.StartPrice)
	check.Equal(t, presenter.MoneyView{Amount: "10", Currency: "JPY"}, created.BidIncrement)
	assert.NotNil(t, created.CurrentPrice)
	check.Equal(t, "100", created.CurrentPrice.Amount)

	rec := do(t, e, http.MethodGet, "/api/v1/auctions/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var fetched presenter.AuctionView
	decode(t, rec, &fetched)
	check.Equal(t, created.ID, fetched.ID)

	rec = do(t, e, http.MethodGet, "/api/v1/auctions?status=running", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list ListAuctionsResponse
	decode(t, rec, &list)
	check.Equal(t, 1, len(list.Auctions))
	check.Equal(t, "", list.NextPageToken)
}

func TestAuctionHandler_BiddingFlow(t *testing.T) {
	e := newServer(t)
	a := createRunning(t, e)
	base := "/api/v1/auctions/" + a.ID

	rec := do(t, e, http.MethodPost, base+"/bids", `{"customer_id":"alice","amount":{"amount":"110","currency":"JPY"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var placed PlaceBidResponse
	decode(t, rec, &placed)
	check.Equal(t, "110", placed.Bid.Amount.Amount)
	check.Equal(t, "alice", placed.Bid.CustomerID)
	check.False(t, placed.Bid.Auto)

	rec = do(t, e, http.MethodPut, base+"/auto-bids/bob", `{"max_amount":{"amount":"500","currency":"JPY"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var auto AutoBidResponse
	decode(t, rec, &auto)
	check.Equal(t, "active", auto.AutoBid.Status)
	check.Equal(t, "120", auto.Auction.CurrentPrice.Amount)

	rec = do(t, e, http.MethodGet, base+"/bids", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var bids []presenter.BidView
	decode(t, rec, &bids)
	assert.Equal(t, 2, len(bids))
	check.True(t, bids[1].Auto)
	check.Equal(t, "bob", bids[1].CustomerID)

	rec = do(t, e, http.MethodGet, base+"/auto-bids", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var autoBids []presenter.AutoBidView
	decode(t, rec, &autoBids)
	check.Equal(t, 1, len(autoBids))

	rec = do(t, e, http.MethodPost, base+"/close", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var closed presenter.AuctionView
	decode(t, rec, &closed)
	check.Equal(t, "awaiting_approval", closed.Status)
	check.Equal(t, "120", closed.WinningPrice.Amount)

	rec = do(t, e, http.MethodPost, base+"/approve", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var approved presenter.AuctionView
	decode(t, rec, &approved)
	check.Equal(t, "approved", approved.Status)
	assert.NotNil(t, approved.ApprovedBy)
	check.Equal(t, "admin-1", *approved.ApprovedBy)
}

func TestAuctionHandler_ErrorMapping(t *testing.T) {
	e := newServer(t)
	a := createRunning(t, e)
	base := "/api/v1/auctions/" + a.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bid too low", http.MethodPost, base + "/bids", `{"customer_id":"alice","amount":{"amount":"105","currency":"JPY"}}`, http.StatusBadRequest, "invalid_argument"},
		{"currency mismatch", http.MethodPost, base + "/bids", `{"customer_id":"alice","amount":{"amount":"200","currency":"USD"}}`, http.StatusBadRequest, "invalid_argument"},
		{"malformed amount", http.MethodPost, base + "/bids", `{"customer_id":"alice","amount":{"amount":"1e","currency":"JPY"}}`, http.StatusBadRequest, "invalid_argument"},
		{"ineligible customer", http.MethodPost, base + "/bids", `{"customer_id":"mallory","amount":{"amount":"200","currency":"JPY"}}`, http.StatusForbidden, "permission_denied"},
		{"malformed id", http.MethodGet, "/api/v1/auctions/not-an-id", "", http.StatusBadRequest, "invalid_argument"},
		{"unknown auction", http.MethodGet, "/api/v1/auctions/" + uuid.NewString(), "", http.StatusNotFound, "not_found"},
		{"approve running auction", http.MethodPost, base + "/approve", "", http.StatusConflict, "failed_precondition"},
		{"update non-draft", http.MethodPut, base, `{"product_id":"p","sku_id":"s","auction_type":"open","title":"t","start_at":"2030-01-01T00:00:00Z","end_at":"2030-01-02T00:00:00Z","start_price":{"amount":"1","currency":"JPY"},"bid_increment":{"amount":"1"}}`, http.StatusBadRequest, "invalid_argument"},
		{"unknown status filter", http.MethodGet, "/api/v1/auctions?status=paused", "", http.StatusBadRequest, "invalid_argument"},
		{"bad page token", http.MethodGet, "/api/v1/auctions?page_token=%21%21", "", http.StatusBadRequest, "invalid_argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, tt.method, tt.path, tt.body)
			check.Equal(t, tt.status, rec.Code)
			var body presenter.ErrorView
			decode(t, rec, &body)
			check.Equal(t, tt.code, body.Code)
			check.NotEqual(t, "", body.Error)
		})
	}
}

func TestAuctionHandler_MissingStore(t *testing.T) {
	e := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auctions", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	check.Equal(t, http.StatusBadRequest, rec.Code)
	var body presenter.ErrorView
	decode(t, rec, &body)
	check.Equal(t, "store id is required", body.Error)
}

func TestAuctionHandler_RunScheduled(t *testing.T) {
	e := newServer(t)

	rec := do(t, e, http.MethodPost, "/api/v1/internal/scheduled-auctions:run", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	decode(t, rec, &body)
	check.Equal(t, 0, body["activated"])

	rec = do(t, e, http.MethodPost, "/api/v1/internal/scheduled-auctions:run", `{"batch_size":-1}`)
	check.Equal(t, http.StatusBadRequest, rec.Code)
}
