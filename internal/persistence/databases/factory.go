package databases

import (
	"context"
	"fmt"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// NewManager constructs the document store backend named by cfg.Backend.
// Supported backends: "memory" (default) and "postgres".
func NewManager(ctx context.Context, cfg config.DBConfig) (*persistence.Manager, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryManager(), nil
	case "postgres", "pg":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("db backend postgres requires a DSN")
		}
		pool, err := newPgPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		m, err := NewPostgresManager(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init postgres schema: %w", err)
		}
		m.SetCloser(pool.Close)
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported db backend: %s", cfg.Backend)
	}
}
