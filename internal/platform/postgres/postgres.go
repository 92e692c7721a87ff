package postgres

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"circulation/internal/platform/config"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// DB is the relational store connection pool.
type DB struct {
	*sqlx.DB
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, cfg config.Postgres) (*DB, error) {
	db, err := sqlx.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{DB: db}, nil
}

// Name identifies the dependency in readiness reports.
func (d *DB) Name() string {
	return "postgres"
}

// Health pings the database.
func (d *DB) Health(ctx context.Context) error {
	return d.PingContext(ctx)
}
