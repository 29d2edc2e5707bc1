package stores

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/observe"
	"github.com/me/authapp/pkg/model"
)

type fakeHealth struct {
	health    *model.Health
	healthErr error
	stats     *model.Stats
	statsErr  error

	// gate, when set, makes both calls wait for each other.
	gate     chan struct{}
	inFlight atomic.Int32
}

func (f *fakeHealth) wait(ctx context.Context) {
	if f.gate == nil {
		return
	}
	if f.inFlight.Add(1) == 2 {
		close(f.gate)
	}
	select {
	case <-f.gate:
	case <-ctx.Done():
	}
}

func (f *fakeHealth) Health(ctx context.Context) (*model.Health, error) {
	f.wait(ctx)
	return f.health, f.healthErr
}

func (f *fakeHealth) Stats(ctx context.Context) (*model.Stats, error) {
	f.wait(ctx)
	return f.stats, f.statsErr
}

func int64p(v int64) *int64 { return &v }

func newSystemStore(t *testing.T, f *fakeHealth) *SystemStore {
	t.Helper()
	s := NewSystemStore(f, logging.Discard())
	t.Cleanup(s.Close)
	return s
}

func TestSystemStore_InitializeRunsConcurrently(t *testing.T) {
	f := &fakeHealth{
		health: &model.Health{Status: "UP", Database: "H2 Connected", TotalUsers: int64p(4)},
		stats:  &model.Stats{TotalUsers: 4, AdminUsers: 1, RegularUsers: 3},
		gate:   make(chan struct{}),
	}
	s := newSystemStore(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Initialize(ctx), "both fetches must be in flight at once")

	st := s.State()
	require.True(t, st.Connected)
	require.False(t, st.LastChecked.IsZero())
	require.True(t, s.IsHealthy())
	require.Equal(t, HealthHealthy, s.HealthStatus())
	require.Equal(t, int64(4), s.TotalUsers())
	require.Equal(t, "H2 Connected", s.DatabaseInfo())
	require.Equal(t, int64(1), st.Stats.AdminUsers)
}

func TestSystemStore_InitializeSettlesBoth(t *testing.T) {
	f := &fakeHealth{
		healthErr: &model.APIError{Kind: model.KindTransport, Err: errors.New("connection refused")},
		stats:     &model.Stats{TotalUsers: 9},
	}
	s := newSystemStore(t, f)

	err := s.Initialize(context.Background())
	require.Error(t, err)

	st := s.State()
	require.False(t, st.Connected)
	require.Equal(t, "connection refused", st.HealthError)
	require.Equal(t, HealthError, st.HealthStatus())
	require.NotNil(t, st.Stats, "stats fetch must complete despite the health failure")
	require.Equal(t, int64(9), st.TotalUsers())
	require.Equal(t, HealthUnknown, st.DatabaseInfo())
}

func TestSystemState_Getters(t *testing.T) {
	tests := []struct {
		name       string
		state      SystemState
		wantStatus string
		wantTotal  int64
	}{
		{"empty", SystemState{}, HealthUnknown, 0},
		{"loading", SystemState{HealthLoading: true}, HealthChecking, 0},
		{"down", SystemState{Health: &model.Health{Status: "DOWN"}}, HealthUnknown, 0},
		{"zero health count falls back to stats", SystemState{
			Health: &model.Health{Status: "UP", TotalUsers: int64p(0)},
			Stats:  &model.Stats{TotalUsers: 3},
		}, HealthHealthy, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantStatus, tt.state.HealthStatus())
			require.Equal(t, tt.wantTotal, tt.state.TotalUsers())
		})
	}
}

func TestSystemStore_FailureKeepsPreviousRecord(t *testing.T) {
	f := &fakeHealth{health: &model.Health{Status: "UP"}}
	s := newSystemStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.FetchHealth(ctx))

	f.health = nil
	f.healthErr = &model.APIError{Kind: model.KindTimeout, Err: context.DeadlineExceeded}
	require.Error(t, s.FetchHealth(ctx))

	st := s.State()
	require.NotNil(t, st.Health)
	require.Equal(t, "UP", st.Health.Status)
	require.False(t, st.Connected)
}

func TestSystemStore_Reset(t *testing.T) {
	f := &fakeHealth{health: &model.Health{Status: "UP"}, stats: &model.Stats{TotalUsers: 1}}
	s := newSystemStore(t, f)
	require.NoError(t, s.Initialize(context.Background()))

	s.Reset()
	require.Equal(t, SystemState{}, s.State())
}

func TestSystemStore_SubscribersEndOnCurrentState(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := &fakeHealth{
			health: &model.Health{Status: "UP", Database: "H2 Connected", TotalUsers: int64p(2)},
			stats:  &model.Stats{TotalUsers: 2, AdminUsers: 1, RegularUsers: 2},
			gate:   make(chan struct{}),
		}
		s := newSystemStore(t, f)
		ch, cancel := observe.Latest(s.Subscribe)

		require.NoError(t, s.Initialize(context.Background()))

		var last SystemState
		select {
		case last = <-ch:
		default:
			t.Fatal("expected a published state")
		}
		cancel()
		require.Equal(t, s.State(), last, "run %d", i)
	}
}
