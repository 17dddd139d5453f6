package databases

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
)

// OpenPool creates a Postgres connection pool using the document store's
// conservative defaults (bounded lifetime/idle, short connect ping).
func OpenPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	return newPgPool(ctx, cfg)
}

func newPgPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = cfg.MaxConns
	if pcfg.MaxConns <= 0 {
		pcfg.MaxConns = 8
	}
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnLifetime = time.Hour
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
