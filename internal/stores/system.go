package stores

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/me/authapp/internal/api"
	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/observe"
	"github.com/me/authapp/pkg/model"
)

// Health labels returned by SystemState.HealthStatus.
const (
	HealthChecking = "Checking..."
	HealthError    = "Error"
	HealthHealthy  = "Healthy"
	HealthUnknown  = "Unknown"
)

// HealthAPI is the slice of the API client the system store needs.
type HealthAPI interface {
	Health(ctx context.Context) (*model.Health, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// SystemState is an immutable copy of the system store.
type SystemState struct {
	Health        *model.Health
	HealthLoading bool
	HealthError   string

	Stats        *model.Stats
	StatsLoading bool
	StatsError   string

	Connected   bool
	LastChecked time.Time
}

// IsHealthy reports whether the backend says it is up.
func (s SystemState) IsHealthy() bool { return s.Health.IsUp() }

// HealthStatus is a display label for the backend health.
func (s SystemState) HealthStatus() string {
	switch {
	case s.HealthLoading:
		return HealthChecking
	case s.HealthError != "":
		return HealthError
	case s.Health.IsUp():
		return HealthHealthy
	default:
		return HealthUnknown
	}
}

// TotalUsers prefers the health payload's count, then the stats count.
func (s SystemState) TotalUsers() int64 {
	if s.Health != nil && s.Health.TotalUsers != nil && *s.Health.TotalUsers != 0 {
		return *s.Health.TotalUsers
	}
	if s.Stats != nil {
		return s.Stats.TotalUsers
	}
	return 0
}

// DatabaseInfo describes the backend database.
func (s SystemState) DatabaseInfo() string {
	if s.Health != nil && s.Health.Database != "" {
		return s.Health.Database
	}
	return HealthUnknown
}

// SystemStore caches backend health and statistics.
type SystemStore struct {
	api    HealthAPI
	logger *slog.Logger
	hub    observe.Hub[SystemState]
	now    func() time.Time

	guarded
	state SystemState
}

// NewSystemStore creates an empty system store.
func NewSystemStore(health HealthAPI, logger *slog.Logger) *SystemStore {
	return &SystemStore{
		api:     health,
		logger:  logging.Component(logger, "system"),
		now:     time.Now,
		guarded: guarded{lifecycle: newLifecycle()},
	}
}

// Close cancels in-flight requests; later responses are dropped.
func (s *SystemStore) Close() { s.cancel() }

// Subscribe registers fn for every state change.
func (s *SystemStore) Subscribe(fn func(SystemState)) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

// State returns a copy of the current state.
func (s *SystemStore) State() SystemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *SystemStore) stateLocked() SystemState {
	st := s.state
	if s.state.Health != nil {
		h := *s.state.Health
		st.Health = &h
	}
	if s.state.Stats != nil {
		v := *s.state.Stats
		st.Stats = &v
	}
	return st
}

func (s *SystemStore) update(fn func(st *SystemState)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.stateLocked()
	seq := s.hub.Stamp()
	s.mu.Unlock()
	s.hub.PublishAt(seq, st)
}

// IsHealthy reports whether the backend says it is up.
func (s *SystemStore) IsHealthy() bool { return s.State().IsHealthy() }

// HealthStatus is a display label for the backend health.
func (s *SystemStore) HealthStatus() string { return s.State().HealthStatus() }

// TotalUsers is the best known user count.
func (s *SystemStore) TotalUsers() int64 { return s.State().TotalUsers() }

// DatabaseInfo describes the backend database.
func (s *SystemStore) DatabaseInfo() string { return s.State().DatabaseInfo() }

// FetchHealth refreshes the health record and the connection flag.
func (s *SystemStore) FetchHealth(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var epoch uint64
	s.update(func(st *SystemState) {
		st.HealthLoading = true
		st.HealthError = ""
		epoch = s.epoch
	})

	h, err := s.api.Health(ctx)
	s.update(func(st *SystemState) {
		if !s.currentLocked(epoch) {
			return
		}
		st.HealthLoading = false
		if err != nil {
			st.HealthError = api.ErrorMessage(err)
			st.Connected = false
			return
		}
		st.Health = h
		st.Connected = true
		st.LastChecked = s.now()
	})
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		return err
	}
	s.logger.Debug("backend health", "status", h.Status, "database", h.Database)
	return nil
}

// FetchStats refreshes the statistics record.
func (s *SystemStore) FetchStats(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var epoch uint64
	s.update(func(st *SystemState) {
		st.StatsLoading = true
		st.StatsError = ""
		epoch = s.epoch
	})

	stats, err := s.api.Stats(ctx)
	s.update(func(st *SystemState) {
		if !s.currentLocked(epoch) {
			return
		}
		st.StatsLoading = false
		if err != nil {
			st.StatsError = api.ErrorMessage(err)
			return
		}
		st.Stats = stats
	})
	if err != nil {
		s.logger.Error("stats fetch failed", "error", err)
		return err
	}
	return nil
}

// Initialize fetches health and stats concurrently and waits for both to
// settle. A failure in one does not cancel the other; the joined errors
// are returned.
func (s *SystemStore) Initialize(ctx context.Context) error {
	var healthErr, statsErr error
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		healthErr = s.FetchHealth(ctx)
		return nil
	})
	g.Go(func() error {
		statsErr = s.FetchStats(ctx)
		return nil
	})
	g.Wait()
	return errors.Join(healthErr, statsErr)
}

// Reset returns the store to its initial state. Results of requests
// started before the reset are discarded.
func (s *SystemStore) Reset() {
	s.update(func(st *SystemState) {
		*st = SystemState{}
		s.epoch++
	})
}
