package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/sb-works/collab-backend/config"
)

// NewConnection opens a database/sql handle for maintenance tasks such as
// migrations. Request traffic goes through the pgx pool instead.
func NewConnection(cfg *config.DatabaseConfig) (*sql.DB, error) {
	return Open(DSN(cfg))
}

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	return db, nil
}
