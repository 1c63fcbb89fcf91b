package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
)

const autoBidColumns = `id, auction_id, customer_id, max_amount, currency, status, created_at, updated_at`

type MySQLAutoBidRepository struct {
	q Queryer
}

func NewMySQLAutoBidRepository(q Queryer) *MySQLAutoBidRepository {
	return &MySQLAutoBidRepository{q: q}
}

// Upsert relies on the unique (auction_id, customer_id) key. The id and
// created_at of an existing row are kept.
func (r *MySQLAutoBidRepository) Upsert(ctx context.Context, autoBid *domain.AutoBid) error {
	query := `
        INSERT INTO auto_bids (` + autoBidColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE
            max_amount = VALUES(max_amount),
            currency = VALUES(currency),
            status = VALUES(status),
            updated_at = VALUES(updated_at)
    `
	_, err := r.q.ExecContext(ctx, query,
		autoBid.ID, autoBid.AuctionID, autoBid.CustomerID,
		autoBid.MaxAmount.Amount, autoBid.MaxAmount.Currency, int(autoBid.Status),
		autoBid.CreatedAt, autoBid.UpdatedAt)
	return err
}

func (r *MySQLAutoBidRepository) Get(ctx context.Context, auctionID, customerID string) (*domain.AutoBid, error) {
	query := `SELECT ` + autoBidColumns + ` FROM auto_bids WHERE auction_id = ? AND customer_id = ?`
	autoBid, err := scanAutoBid(r.q.QueryRowContext(ctx, query, auctionID, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapTable("auto_bids", err)
	}
	return autoBid, nil
}

func (r *MySQLAutoBidRepository) TopActive(ctx context.Context, auctionID string, limit int) ([]*domain.AutoBid, error) {
	query := `
        SELECT ` + autoBidColumns + `
        FROM auto_bids
        WHERE auction_id = ? AND status = ?
        ORDER BY max_amount DESC, created_at ASC, id ASC
        LIMIT ?
    `
	return r.query(ctx, query, auctionID, int(domain.AutoBidActive), limit)
}

func (r *MySQLAutoBidRepository) ListByAuction(ctx context.Context, auctionID string) ([]*domain.AutoBid, error) {
	query := `
        SELECT ` + autoBidColumns + `
        FROM auto_bids
        WHERE auction_id = ?
        ORDER BY max_amount DESC, created_at ASC, id ASC
    `
	return r.query(ctx, query, auctionID)
}

func (r *MySQLAutoBidRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.AutoBid, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	autoBids := []*domain.AutoBid{}
	for rows.Next() {
		autoBid, err := scanAutoBid(rows)
		if err != nil {
			return nil, err
		}
		autoBids = append(autoBids, autoBid)
	}
	return autoBids, rows.Err()
}

func scanAutoBid(row scanner) (*domain.AutoBid, error) {
	var autoBid domain.AutoBid
	var status int
	err := row.Scan(&autoBid.ID, &autoBid.AuctionID, &autoBid.CustomerID,
		&autoBid.MaxAmount.Amount, &autoBid.MaxAmount.Currency, &status,
		&autoBid.CreatedAt, &autoBid.UpdatedAt)
	if err != nil {
		return nil, err
	}
	autoBid.Status = domain.AutoBidStatus(status)
	return &autoBid, nil
}
