package utils

import (
	"auction-engine/internal/config"
	"auction-engine/internal/infrastructure/mysql"
	"auction-engine/pkg/logger"
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// InitializeMysql opens and pings the pool, creating the tables first when
// mysql.migrate is set.
func InitializeMysql(ctx context.Context, cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	log.Info("Connected to MySQL")

	if cfg.MySQL.Migrate {
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate mysql: %w", err)
		}
		log.Info("MySQL schema ensured")
	}
	return db, nil
}
