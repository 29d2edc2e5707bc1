package kv

import (
	"context"
	"testing"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "auth_session_id"); err != nil || ok {
		t.Fatalf("Get on empty store = ok:%v err:%v, want absent", ok, err)
	}

	if err := st.Set(ctx, map[string]string{
		"auth_user":           `{"id":1,"email":"a@x.com"}`,
		"auth_session_id":     "s1",
		"auth_session_expiry": "2030-01-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := st.Get(ctx, "auth_session_id")
	if err != nil || !ok || got != "s1" {
		t.Fatalf("Get = %q ok:%v err:%v, want s1", got, ok, err)
	}

	if err := st.Set(ctx, map[string]string{"auth_session_id": "s2"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _, _ := st.Get(ctx, "auth_session_id"); got != "s2" {
		t.Errorf("after overwrite got %q, want s2", got)
	}

	if err := st.Delete(ctx, "auth_user", "auth_session_id", "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "auth_user"); ok {
		t.Error("auth_user should be gone")
	}
	if _, ok, _ := st.Get(ctx, "auth_session_id"); ok {
		t.Error("auth_session_id should be gone")
	}
	if got, ok, _ := st.Get(ctx, "auth_session_expiry"); !ok || got != "2030-01-01T00:00:00Z" {
		t.Errorf("untouched key changed: %q ok:%v", got, ok)
	}

	if err := st.Set(ctx, nil); err != nil {
		t.Errorf("empty Set: %v", err)
	}
	if err := st.Delete(ctx); err != nil {
		t.Errorf("empty Delete: %v", err)
	}
}
