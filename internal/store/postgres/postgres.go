// Package postgres implements the store interfaces on PostgreSQL. All
// cross-process coordination happens through conditional UPDATEs executed as
// single round trips; there is no advisory locking on the hot path.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, connURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}
