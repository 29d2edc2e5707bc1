package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/authapp/internal/config"
)

// Open returns the Store selected by cfg.StateBackend, migrated and ready.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.StateBackend {
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPrefix, logger)
	case config.BackendSQLite, "":
		st, err := NewSQLiteStore(cfg.StatePath, logger)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate state: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
