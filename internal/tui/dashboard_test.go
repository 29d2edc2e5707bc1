package tui

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/me/authapp/internal/apitest"
	"github.com/me/authapp/internal/app"
	"github.com/me/authapp/internal/config"
	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/session"
	"github.com/me/authapp/pkg/model"
)

func newTestDashboard(t *testing.T) (*Dashboard, *apitest.Server) {
	t.Helper()
	fake, baseURL := apitest.Start(t)
	fake.AddUser(apitest.AdminEmail, apitest.AdminPassword, model.RoleAdmin, model.RoleUser)
	fake.AddUser(apitest.UserEmail, apitest.UserPassword, model.RoleUser)

	cfg := config.Default()
	cfg.APIBaseURL = baseURL
	cfg.RequestTimeout = 2 * time.Second
	cfg.StatePath = filepath.Join(t.TempDir(), "state.db")
	a, err := app.New(context.Background(), &cfg, logging.Discard())
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	d := New(ctx, a)
	t.Cleanup(d.Close)
	return d, fake
}

// step runs cmd and feeds its message back into the model.
func step(t *testing.T, d *Dashboard, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if msg == nil {
		t.Fatal("command produced no message")
	}
	model, next := d.Update(msg)
	if _, ok := model.(*Dashboard); !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	return next
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDashboard_QuitKeys(t *testing.T) {
	d, _ := newTestDashboard(t)

	for _, msg := range []tea.KeyMsg{key("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := d.Update(msg)
		if cmd == nil {
			t.Fatalf("%s: expected quit command", msg)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s: expected tea.QuitMsg", msg)
		}
	}
}

func TestDashboard_RefreshLoadsHealthAndUsers(t *testing.T) {
	d, _ := newTestDashboard(t)

	_, cmd := d.Update(key("r"))
	if d.statusMsg != "Refreshing..." {
		t.Fatalf("statusMsg = %q", d.statusMsg)
	}
	step(t, d, cmd)
	if !strings.HasPrefix(d.statusMsg, "Refreshed at") {
		t.Fatalf("statusMsg = %q, want refreshed", d.statusMsg)
	}

	step(t, d, d.waitUsers())
	step(t, d, d.waitSystem())
	if got := d.users.Count(); got != 2 {
		t.Fatalf("users = %d, want 2", got)
	}

	view := d.View()
	for _, want := range []string{"Healthy", "H2 Connected", apitest.AdminEmail, apitest.UserEmail, "USERS (2)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDashboard_RefreshFailure(t *testing.T) {
	d, fake := newTestDashboard(t)
	fake.Fail("GET", "/test/users", http.StatusInternalServerError, map[string]string{"message": "boom"})

	step(t, d, d.refresh())
	if !strings.HasPrefix(d.statusMsg, "Refresh failed: boom") {
		t.Fatalf("statusMsg = %q", d.statusMsg)
	}
	step(t, d, d.waitUsers())
	if !strings.Contains(d.View(), "boom") {
		t.Errorf("view should show the user list error:\n%s", d.View())
	}
}

func TestDashboard_FollowsSession(t *testing.T) {
	d, _ := newTestDashboard(t)
	if !strings.Contains(d.View(), string(session.Anonymous)) {
		t.Fatalf("initial view should show anonymous:\n%s", d.View())
	}

	ok := d.app.Session.Login(context.Background(), model.Credentials{Email: apitest.UserEmail, Password: apitest.UserPassword})
	if !ok {
		t.Fatal("login failed")
	}
	step(t, d, d.waitSession())

	if d.status.State != session.Authenticated {
		t.Fatalf("state = %s, want authenticated", d.status.State)
	}
	view := d.View()
	for _, want := range []string{apitest.UserEmail, "USER", "Expires:", session.MsgLoginSuccess} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDashboard_ValidateKey(t *testing.T) {
	d, _ := newTestDashboard(t)

	_, cmd := d.Update(key("v"))
	if d.validation != "Validating..." {
		t.Fatalf("validation = %q", d.validation)
	}
	step(t, d, cmd)
	if d.validation != "Session is not valid" {
		t.Fatalf("validation = %q for anonymous session", d.validation)
	}

	d.app.Session.Login(context.Background(), model.Credentials{Email: apitest.UserEmail, Password: apitest.UserPassword})
	_, cmd = d.Update(key("v"))
	step(t, d, cmd)
	if d.validation != "Session is valid" {
		t.Fatalf("validation = %q after login", d.validation)
	}
}

func TestDashboard_WindowSize(t *testing.T) {
	d, _ := newTestDashboard(t)
	d.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	if d.width != 140 || d.height != 40 {
		t.Fatalf("size = %dx%d", d.width, d.height)
	}
	if d.View() == "" {
		t.Fatal("empty view")
	}
}

func TestWaitFor_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := waitFor(ctx, make(chan int), func(int) tea.Msg { return "value" })
	if msg := cmd(); msg != nil {
		t.Fatalf("msg = %v, want nil after cancel", msg)
	}
}
