package postgres

import (
	"fmt"

	"github.com/sb-works/collab-backend/config"
)

// DSN returns DB_DSN when set, otherwise a keyword/value string built from
// the individual DB_* settings. Both lib/pq and pgx accept either form.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode,
	)
}
