package mysql

import (
	"context"
	"database/sql"
)

// MySQLEligibilityChecker reads the customer tables owned by the storefront.
// A customer may bid when both the account and its store profile are active.
type MySQLEligibilityChecker struct {
	db *sql.DB
}

func NewMySQLEligibilityChecker(db *sql.DB) *MySQLEligibilityChecker {
	return &MySQLEligibilityChecker{db: db}
}

func (c *MySQLEligibilityChecker) IsCustomerEligibleToBid(ctx context.Context, storeID, customerID string) (bool, error) {
	if customerID == "" {
		return false, nil
	}
	query := `
        SELECT COUNT(*)
        FROM customers c
        JOIN customer_profiles p ON p.customer_id = c.id AND p.store_id = c.store_id
        WHERE c.id = ? AND c.store_id = ? AND c.status = 'active' AND p.status = 'active'
    `
	var count int
	if err := c.db.QueryRowContext(ctx, query, customerID, storeID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
