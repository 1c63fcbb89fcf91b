package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
)

const bidColumns = `id, auction_id, customer_id, amount, currency, is_auto, created_at`

// MySQLBidRepository is append-only: there is no update or delete.
type MySQLBidRepository struct {
	q Queryer
}

func NewMySQLBidRepository(q Queryer) *MySQLBidRepository {
	return &MySQLBidRepository{q: q}
}

func (r *MySQLBidRepository) Insert(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (` + bidColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.q.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.CustomerID,
		bid.Amount.Amount, bid.Amount.Currency, bid.Auto, bid.CreatedAt)
	return err
}

func (r *MySQLBidRepository) Get(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	bid, err := scanBid(r.q.QueryRowContext(ctx, query, bidID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, wrapTable("bids", err)
	}
	return bid, nil
}

func (r *MySQLBidRepository) Best(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC, created_at ASC, id ASC
        LIMIT 1
    `
	bid, err := scanBid(r.q.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapTable("bids", err)
	}
	return bid, nil
}

func (r *MySQLBidRepository) ListByAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY created_at ASC, id ASC
    `
	rows, err := r.q.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanBid(row scanner) (*domain.Bid, error) {
	var bid domain.Bid
	err := row.Scan(&bid.ID, &bid.AuctionID, &bid.CustomerID,
		&bid.Amount.Amount, &bid.Amount.Currency, &bid.Auto, &bid.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
