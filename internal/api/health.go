package api

import (
	"context"
	"net/http"

	"github.com/me/authapp/pkg/model"
)

// HealthService wraps the health and statistics endpoints.
type HealthService struct {
	c *Client
}

// Health returns the health and statistics endpoints.
func (c *Client) Health() *HealthService { return &HealthService{c: c} }

// Health reports backend liveness.
func (s *HealthService) Health(ctx context.Context) (*model.Health, error) {
	var h model.Health
	if err := s.c.Do(ctx, http.MethodGet, "/test/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Stats returns user counts.
func (s *HealthService) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	if err := s.c.Do(ctx, http.MethodGet, "/test/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
