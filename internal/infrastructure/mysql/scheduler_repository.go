package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"time"
)

// ClaimScheduled locks due scheduled auctions. Rows already locked, by another
// scheduler or an in-flight bid, are skipped until the next run.
func (r *MySQLAuctionRepository) ClaimScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions
        WHERE status = ? AND start_at <= ?
        ORDER BY start_at ASC, id ASC
        LIMIT ?
        FOR UPDATE SKIP LOCKED
    `
	return r.query(ctx, query, int(domain.AuctionScheduled), now, limit)
}
