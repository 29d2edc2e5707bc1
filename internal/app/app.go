// Package app wires the state containers into one context object per
// process. UI layers receive an *App instead of reaching for globals.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/authapp/internal/api"
	"github.com/me/authapp/internal/config"
	"github.com/me/authapp/internal/kv"
	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/session"
	"github.com/me/authapp/internal/stores"
)

// App holds the per-process state containers.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   kv.Store
	Client  *api.Client
	Session *session.Manager
	Users   *stores.UserStore
	System  *stores.SystemStore
}

// New opens the configured durable store, builds the containers, and
// restores any saved session.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := kv.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	a := NewWithStore(cfg, store, logger)
	a.Session.RestoreSession(ctx)
	return a, nil
}

// NewWithStore builds the containers on an already open store. The saved
// session is not restored.
func NewWithStore(cfg *config.Config, store kv.Store, logger *slog.Logger) *App {
	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	mgr := session.New(client.Auth(), store, logger)
	client.Tokens = mgr

	return &App{
		Config:  cfg,
		Logger:  logging.Component(logger, "app"),
		Store:   store,
		Client:  client,
		Session: mgr,
		Users:   stores.NewUserStore(client.Users(), logger),
		System:  stores.NewSystemStore(client.Health(), logger),
	}
}

// Logout ends the session and drops cached user data.
func (a *App) Logout(ctx context.Context) bool {
	ok := a.Session.Logout(ctx)
	a.Users.Reset()
	return ok
}

// Close cancels in-flight requests and closes the durable store.
func (a *App) Close() error {
	a.Session.Close()
	a.Users.Close()
	a.System.Close()
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close state store: %w", err)
	}
	return nil
}
