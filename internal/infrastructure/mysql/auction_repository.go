package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
	"strings"
)

const auctionColumns = `id, store_id, product_id, sku_id, auction_type, title, description,
        start_at, end_at, currency, start_price, bid_increment, reserve_price, buyout_price,
        current_price, current_bid_id, winning_price, winning_bid_id,
        status, approved_by, approved_at, created_at, updated_at`

type MySQLAuctionRepository struct {
	q Queryer
}

func NewMySQLAuctionRepository(q Queryer) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{q: q}
}

func (r *MySQLAuctionRepository) Insert(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.q.ExecContext(ctx, query,
		auction.ID, auction.StoreID, auction.ProductID, auction.SkuID,
		int(auction.Type), auction.Title, auction.Description,
		auction.StartAt, auction.EndAt, auction.StartPrice.Currency,
		auction.StartPrice.Amount, auction.BidIncrement.Amount,
		nullableAmount(auction.ReservePrice), nullableAmount(auction.BuyoutPrice),
		nullableAmount(auction.CurrentPrice), nullableString(auction.CurrentBidID),
		nullableAmount(auction.WinningPrice), nullableString(auction.WinningBidID),
		int(auction.Status), nullableString(auction.ApprovedBy), auction.ApprovedAt,
		auction.CreatedAt, auction.UpdatedAt)
	return err
}

func (r *MySQLAuctionRepository) Get(ctx context.Context, storeID, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ? AND store_id = ?`
	return r.getOne(ctx, query, auctionID, storeID)
}

func (r *MySQLAuctionRepository) GetForUpdate(ctx context.Context, storeID, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ? AND store_id = ? FOR UPDATE`
	return r.getOne(ctx, query, auctionID, storeID)
}

func (r *MySQLAuctionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Auction, error) {
	auction, err := scanAuction(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, wrapTable("auctions", err)
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) Update(ctx context.Context, auction *domain.Auction) error {
	query := `
        UPDATE auctions SET
            product_id = ?, sku_id = ?, auction_type = ?, title = ?, description = ?,
            start_at = ?, end_at = ?, currency = ?, start_price = ?, bid_increment = ?,
            reserve_price = ?, buyout_price = ?, current_price = ?, current_bid_id = ?,
            winning_price = ?, winning_bid_id = ?, status = ?, approved_by = ?, approved_at = ?,
            updated_at = ?
        WHERE id = ? AND store_id = ?
    `
	_, err := r.q.ExecContext(ctx, query,
		auction.ProductID, auction.SkuID, int(auction.Type), auction.Title, auction.Description,
		auction.StartAt, auction.EndAt, auction.StartPrice.Currency,
		auction.StartPrice.Amount, auction.BidIncrement.Amount,
		nullableAmount(auction.ReservePrice), nullableAmount(auction.BuyoutPrice),
		nullableAmount(auction.CurrentPrice), nullableString(auction.CurrentBidID),
		nullableAmount(auction.WinningPrice), nullableString(auction.WinningBidID),
		int(auction.Status), nullableString(auction.ApprovedBy), auction.ApprovedAt,
		auction.UpdatedAt, auction.ID, auction.StoreID)
	return err
}

func (r *MySQLAuctionRepository) List(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error) {
	var sb strings.Builder
	args := []interface{}{filter.StoreID}

	sb.WriteString(`SELECT ` + auctionColumns + ` FROM auctions WHERE store_id = ?`)
	if filter.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, int(*filter.Status))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	args = append(args, filter.Limit, filter.Offset)

	return r.query(ctx, sb.String(), args...)
}

func (r *MySQLAuctionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auctions := []*domain.Auction{}
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func scanAuction(row scanner) (*domain.Auction, error) {
	var (
		a                                domain.Auction
		auctionType, status              int
		currency                         string
		startPrice, bidIncrement         int64
		reserve, buyout, current, winner sql.NullInt64
		currentBidID, winningBidID       sql.NullString
		approvedBy                       sql.NullString
		approvedAt                       sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.StoreID, &a.ProductID, &a.SkuID, &auctionType, &a.Title, &a.Description,
		&a.StartAt, &a.EndAt, &currency, &startPrice, &bidIncrement, &reserve, &buyout,
		&current, &currentBidID, &winner, &winningBidID,
		&status, &approvedBy, &approvedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Type = domain.AuctionType(auctionType)
	a.Status = domain.AuctionStatus(status)
	a.StartPrice = domain.NewMoney(startPrice, currency)
	a.BidIncrement = domain.NewMoney(bidIncrement, currency)
	a.ReservePrice = moneyFrom(reserve, currency)
	a.BuyoutPrice = moneyFrom(buyout, currency)
	a.CurrentPrice = moneyFrom(current, currency)
	a.CurrentBidID = stringFrom(currentBidID)
	a.WinningPrice = moneyFrom(winner, currency)
	a.WinningBidID = stringFrom(winningBidID)
	a.ApprovedBy = stringFrom(approvedBy)
	if approvedAt.Valid {
		at := approvedAt.Time
		a.ApprovedAt = &at
	}
	return &a, nil
}
