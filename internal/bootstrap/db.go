package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sb-works/collab-backend/config"
	"github.com/sb-works/collab-backend/internal/db"
	"github.com/sb-works/collab-backend/internal/projects/repository"
	"github.com/sb-works/collab-backend/internal/projects/service"
	"github.com/sb-works/collab-backend/internal/users"
)

// Storage is the persistence side selected by STORE_DRIVER.
type Storage struct {
	Store     repository.Store
	Directory service.Directory
	// Pool is nil for the in-memory driver.
	Pool *pgxpool.Pool
}

func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func OpenStorage(ctx context.Context, cfg config.DatabaseConfig) (*Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return &Storage{
			Store:     repository.NewMemoryStore(),
			Directory: users.StaticDirectory{},
		}, nil
	case config.DriverPostgres:
		d, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Storage{
			Store:     repository.NewPostgresStore(d.Pool),
			Directory: users.NewRepo(d.Pool),
			Pool:      d.Pool,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
