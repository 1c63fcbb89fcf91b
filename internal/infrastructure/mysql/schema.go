package mysql

import (
	"context"
	"database/sql"
)

// Tables owned by the auction engine. Status and type columns hold the
// domain enum values.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
        id             CHAR(36)     NOT NULL PRIMARY KEY,
        store_id       VARCHAR(64)  NOT NULL,
        product_id     VARCHAR(64)  NOT NULL,
        sku_id         VARCHAR(64)  NOT NULL,
        auction_type   TINYINT      NOT NULL,
        title          VARCHAR(255) NOT NULL,
        description    TEXT         NOT NULL,
        start_at       DATETIME(6)  NOT NULL,
        end_at         DATETIME(6)  NOT NULL,
        currency       CHAR(3)      NOT NULL,
        start_price    BIGINT       NOT NULL,
        bid_increment  BIGINT       NOT NULL,
        reserve_price  BIGINT       NULL,
        buyout_price   BIGINT       NULL,
        current_price  BIGINT       NULL,
        current_bid_id CHAR(36)     NULL,
        winning_price  BIGINT       NULL,
        winning_bid_id CHAR(36)     NULL,
        status         TINYINT      NOT NULL,
        approved_by    VARCHAR(64)  NULL,
        approved_at    DATETIME(6)  NULL,
        created_at     DATETIME(6)  NOT NULL,
        updated_at     DATETIME(6)  NOT NULL,
        KEY idx_auctions_store_created (store_id, created_at, id),
        KEY idx_auctions_status_start (status, start_at)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bids (
        id          CHAR(36)    NOT NULL PRIMARY KEY,
        auction_id  CHAR(36)    NOT NULL,
        customer_id VARCHAR(64) NOT NULL,
        amount      BIGINT      NOT NULL,
        currency    CHAR(3)     NOT NULL,
        is_auto     BOOLEAN     NOT NULL DEFAULT FALSE,
        created_at  DATETIME(6) NOT NULL,
        KEY idx_bids_auction_amount (auction_id, amount, created_at),
        KEY idx_bids_auction_created (auction_id, created_at)
    ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS auto_bids (
        id          CHAR(36)    NOT NULL PRIMARY KEY,
        auction_id  CHAR(36)    NOT NULL,
        customer_id VARCHAR(64) NOT NULL,
        max_amount  BIGINT      NOT NULL,
        currency    CHAR(3)     NOT NULL,
        status      TINYINT     NOT NULL,
        created_at  DATETIME(6) NOT NULL,
        updated_at  DATETIME(6) NOT NULL,
        UNIQUE KEY uq_auto_bids_auction_customer (auction_id, customer_id),
        KEY idx_auto_bids_top (auction_id, status, max_amount)
    ) ENGINE=InnoDB`,
}

// EnsureSchema creates the engine's tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
