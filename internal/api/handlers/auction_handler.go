package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"auction-engine/internal/api/presenter"
	"auction-engine/internal/domain"
	"auction-engine/internal/money"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderStoreID = "X-Store-ID"
	HeaderActorID = "X-Actor-ID"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	bidService     *services.BidService
	scheduler      *services.AuctionScheduler
	batchSize      int
	log            logger.Logger
}

type AuctionRequest struct {
	ProductID    string               `json:"product_id"`
	SkuID        string               `json:"sku_id"`
	Type         string               `json:"auction_type"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	StartAt      time.Time            `json:"start_at"`
	EndAt        time.Time            `json:"end_at"`
	StartPrice   presenter.MoneyView  `json:"start_price"`
	BidIncrement *presenter.MoneyView `json:"bid_increment"`
	ReservePrice *presenter.MoneyView `json:"reserve_price"`
	BuyoutPrice  *presenter.MoneyView `json:"buyout_price"`
	Draft        bool                 `json:"draft"`
}

type PlaceBidRequest struct {
	CustomerID string              `json:"customer_id"`
	Amount     presenter.MoneyView `json:"amount"`
}

type PlaceBidResponse struct {
	Auction presenter.AuctionView `json:"auction"`
	Bid     presenter.BidView     `json:"bid"`
}

type AutoBidRequest struct {
	MaxAmount *presenter.MoneyView `json:"max_amount"`
	// Enabled defaults to true.
	Enabled *bool `json:"enabled"`
}

type AutoBidResponse struct {
	Auction presenter.AuctionView `json:"auction"`
	AutoBid presenter.AutoBidView `json:"auto_bid"`
}

type ListAuctionsResponse struct {
	Auctions      []presenter.AuctionView `json:"auctions"`
	NextPageToken string                  `json:"next_page_token,omitempty"`
}

type ApproveRequest struct {
	Approver string `json:"approver"`
}

type RunScheduledRequest struct {
	BatchSize int `json:"batch_size"`
}

func NewAuctionHandler(
	auctionManager *services.AuctionManager,
	bidService *services.BidService,
	scheduler *services.AuctionScheduler,
	batchSize int,
	log logger.Logger,
) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		bidService:     bidService,
		scheduler:      scheduler,
		batchSize:      batchSize,
		log:            log,
	}
}

// Register mounts the auction routes on an /api/v1 group.
func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions", h.ListAuctions)
	g.GET("/auctions/:id", h.GetAuction)
	g.PUT("/auctions/:id", h.UpdateAuction)
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.GET("/auctions/:id/bids", h.ListBids)
	g.PUT("/auctions/:id/auto-bids/:customer", h.SetAutoBid)
	g.GET("/auctions/:id/auto-bids", h.ListAutoBids)
	g.POST("/auctions/:id/close", h.CloseAuction)
	g.POST("/auctions/:id/approve", h.ApproveAuction)
	g.POST("/internal/scheduled-auctions\\:run", h.RunScheduledAuctions)
}

// ActorMiddleware copies the X-Actor-ID header into the request context.
func ActorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if actor := c.Request().Header.Get(HeaderActorID); actor != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(domain.WithActor(req.Context(), actor)))
		}
		return next(c)
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req AuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return h.fail(c, domain.InvalidArgument("invalid request body"))
	}
	params, err := req.toParams()
	if err != nil {
		return h.fail(c, err)
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), storeID(c), params)
	if err != nil {
		return h.fail(c, err)
	}

	h.log.Info("Auction created successfully", "auction_id", auction.ID, "status", auction.Status.String())
	return c.JSON(http.StatusCreated, presenter.Auction(auction))
}

func (h *AuctionHandler) UpdateAuction(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	var req AuctionRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.InvalidArgument("invalid request body"))
	}
	params, err := req.toParams()
	if err != nil {
		return h.fail(c, err)
	}

	auction, err := h.auctionManager.UpdateAuction(c.Request().Context(), storeID(c), auctionID, params)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presenter.Auction(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	auction, err := h.auctionManager.GetAuction(c.Request().Context(), storeID(c), auctionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presenter.Auction(auction))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	var status *domain.AuctionStatus
	if raw := c.QueryParam("status"); raw != "" {
		parsed, err := domain.ParseAuctionStatus(raw)
		if err != nil {
			return h.fail(c, domain.InvalidArgument("unknown status %q", raw))
		}
		status = &parsed
	}
	pageSize := 0
	if raw := c.QueryParam("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return h.fail(c, domain.InvalidArgument("page_size must be a number"))
		}
		pageSize = n
	}

	auctions, next, err := h.auctionManager.ListAuctions(c.Request().Context(), storeID(c), status, c.QueryParam("page_token"), pageSize)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ListAuctionsResponse{
		Auctions:      presenter.Auctions(auctions),
		NextPageToken: next,
	})
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.InvalidArgument("invalid request body"))
	}
	amount, err := req.Amount.ToDomain("")
	if err != nil {
		return h.fail(c, err)
	}
	customerID := req.CustomerID
	if customerID == "" {
		customerID = domain.ActorFrom(c.Request().Context())
	}

	auction, bid, err := h.bidService.PlaceBid(c.Request().Context(), storeID(c), auctionID, customerID, amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, PlaceBidResponse{
		Auction: presenter.Auction(auction),
		Bid:     presenter.Bid(bid),
	})
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	bids, err := h.bidService.ListBids(c.Request().Context(), storeID(c), auctionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presenter.Bids(bids))
}

func (h *AuctionHandler) SetAutoBid(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	var req AutoBidRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.InvalidArgument("invalid request body"))
	}
	enabled := req.Enabled == nil || *req.Enabled
	maxAmount, err := presenter.OptionalToDomain(req.MaxAmount, "")
	if err != nil {
		return h.fail(c, err)
	}

	auction, autoBid, err := h.bidService.SetAutoBid(c.Request().Context(), storeID(c), auctionID, c.Param("customer"), maxAmount, enabled)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, AutoBidResponse{
		Auction: presenter.Auction(auction),
		AutoBid: presenter.AutoBid(autoBid),
	})
}

func (h *AuctionHandler) ListAutoBids(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	autoBids, err := h.bidService.ListAutoBids(c.Request().Context(), storeID(c), auctionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presenter.AutoBids(autoBids))
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	auction, err := h.auctionManager.CloseAuction(c.Request().Context(), storeID(c), auctionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presenter.Auction(auction))
}

func (h *AuctionHandler) ApproveAuction(c echo.Context) error {
	auctionID, err := money.ParseID("auction id", c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.InvalidArgument("invalid request body"))
	}
	approver := req.Approver
	if approver == "" {
		approver = domain.ActorFrom(c.Request().Context())
	}

	auction, err := h.auctionManager.ApproveAuction(c.Request().Context(), storeID(c), auctionID, approver)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presenter.Auction(auction))
}

func (h *AuctionHandler) RunScheduledAuctions(c echo.Context) error {
	var req RunScheduledRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.InvalidArgument("invalid request body"))
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = h.batchSize
	}

	activated, err := h.scheduler.RunScheduledAuctions(c.Request().Context(), batchSize)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"activated": activated})
}

func (h *AuctionHandler) fail(c echo.Context, err error) error {
	status := presenter.Status(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, presenter.Error(err))
}

func storeID(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderStoreID))
}

func (r AuctionRequest) toParams() (services.AuctionParams, error) {
	auctionType, err := domain.ParseAuctionType(r.Type)
	if err != nil {
		return services.AuctionParams{}, domain.InvalidArgument("unknown auction type %q", r.Type)
	}
	startPrice, err := r.StartPrice.ToDomain("")
	if err != nil {
		return services.AuctionParams{}, err
	}
	cur := startPrice.Currency

	increment := domain.NewMoney(0, cur)
	if r.BidIncrement != nil {
		if increment, err = r.BidIncrement.ToDomain(cur); err != nil {
			return services.AuctionParams{}, err
		}
	}
	reserve, err := presenter.OptionalToDomain(r.ReservePrice, cur)
	if err != nil {
		return services.AuctionParams{}, err
	}
	buyout, err := presenter.OptionalToDomain(r.BuyoutPrice, cur)
	if err != nil {
		return services.AuctionParams{}, err
	}

	return services.AuctionParams{
		ProductID:    r.ProductID,
		SkuID:        r.SkuID,
		Type:         auctionType,
		Title:        r.Title,
		Description:  r.Description,
		StartAt:      r.StartAt,
		EndAt:        r.EndAt,
		StartPrice:   startPrice,
		BidIncrement: increment,
		ReservePrice: reserve,
		BuyoutPrice:  buyout,
		Draft:        r.Draft,
	}, nil
}
