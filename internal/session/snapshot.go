package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/me/authapp/pkg/model"
)

// Durable snapshot keys. KeySessionID doubles as the bearer token.
const (
	KeyUser          = "auth_user"
	KeySessionID     = "auth_session_id"
	KeySessionExpiry = "auth_session_expiry"
)

var snapshotKeys = []string{KeyUser, KeySessionID, KeySessionExpiry}

// snapshot is the decoded durable record.
type snapshot struct {
	user    *model.User
	session *model.Session
}

func (m *Manager) writeSnapshot(ctx context.Context, u *model.User, s *model.Session) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return m.store.Set(ctx, map[string]string{
		KeyUser:          string(data),
		KeySessionID:     s.ID,
		KeySessionExpiry: s.Expiry.Format(time.RFC3339Nano),
	})
}

func (m *Manager) deleteSnapshot(ctx context.Context) error {
	return m.store.Delete(ctx, snapshotKeys...)
}

// readSnapshot returns the stored snapshot. present reports whether any of
// the keys existed; a nil snapshot with present=true means the record is
// partial or unparseable.
func (m *Manager) readSnapshot(ctx context.Context) (snap *snapshot, present bool, err error) {
	vals := make(map[string]string, len(snapshotKeys))
	for _, k := range snapshotKeys {
		v, ok, err := m.store.Get(ctx, k)
		if err != nil {
			return nil, false, fmt.Errorf("read %s: %w", k, err)
		}
		if ok && v != "" {
			vals[k] = v
		}
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	if len(vals) != len(snapshotKeys) {
		m.logger.Warn("partial session snapshot", "keys", len(vals))
		return nil, true, nil
	}

	var u model.User
	if err := json.Unmarshal([]byte(vals[KeyUser]), &u); err != nil {
		m.logger.Warn("unreadable stored user", "error", err)
		return nil, true, nil
	}
	expiry, err := model.ParseTime(vals[KeySessionExpiry])
	if err != nil {
		m.logger.Warn("unreadable stored expiry", "error", err)
		return nil, true, nil
	}
	return &snapshot{
		user:    &u,
		session: &model.Session{ID: vals[KeySessionID], Expiry: expiry},
	}, true, nil
}
