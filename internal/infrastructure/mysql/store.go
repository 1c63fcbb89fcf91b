package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
)

const (
	errDeadlock        = 1213
	errLockWaitTimeout = 1205
)

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store runs repository work inside InnoDB transactions. Row locks taken with
// SELECT ... FOR UPDATE are held until commit or rollback.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, newTx(sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return mapError(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

type tx struct {
	auctions *MySQLAuctionRepository
	bids     *MySQLBidRepository
	autoBids *MySQLAutoBidRepository
}

func newTx(q Queryer) *tx {
	return &tx{
		auctions: NewMySQLAuctionRepository(q),
		bids:     NewMySQLBidRepository(q),
		autoBids: NewMySQLAutoBidRepository(q),
	}
}

func (t *tx) Auctions() domain.AuctionRepository { return t.auctions }
func (t *tx) Bids() domain.BidRepository         { return t.bids }
func (t *tx) AutoBids() domain.AutoBidRepository { return t.autoBids }

// mapError turns lock contention into a domain error with a reason the caller
// can act on. Other errors pass through unchanged.
func mapError(err error) error {
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDeadlock, errLockWaitTimeout:
			return domain.Internal("auction is busy, retry later", err)
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullableAmount(m *domain.Money) interface{} {
	if m == nil {
		return nil
	}
	return m.Amount
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func moneyFrom(n sql.NullInt64, currency string) *domain.Money {
	if !n.Valid {
		return nil
	}
	m := domain.NewMoney(n.Int64, currency)
	return &m
}

func stringFrom(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func wrapTable(table string, err error) error {
	return fmt.Errorf("%s: %w", table, err)
}
