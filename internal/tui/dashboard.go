// Package tui is the terminal dashboard. It follows The Elm Architecture:
// state changes pushed by the session manager and the stores arrive as
// messages, Update folds them into the model, and View renders it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/me/authapp/internal/api"
	"github.com/me/authapp/internal/app"
	"github.com/me/authapp/internal/observe"
	"github.com/me/authapp/internal/session"
	"github.com/me/authapp/internal/stores"
	"github.com/me/authapp/pkg/model"
)

// maxUserRows caps the user table so the dashboard fits small terminals.
const maxUserRows = 12

type sessionMsg session.Status

type usersMsg stores.UserState

type systemMsg stores.SystemState

type refreshedMsg struct {
	err error
	at  time.Time
}

type validatedMsg struct {
	valid bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	headStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// Dashboard is the bubbletea model.
type Dashboard struct {
	app *app.App
	ctx context.Context
	now func() time.Time

	sessionCh   <-chan session.Status
	usersCh     <-chan stores.UserState
	systemCh    <-chan stores.SystemState
	unsubscribe []func()

	status     session.Status
	users      stores.UserState
	system     stores.SystemState
	validation string
	statusMsg  string

	width  int
	height int
}

// New subscribes a dashboard to the containers in a. Call Close when done.
func New(ctx context.Context, a *app.App) *Dashboard {
	d := &Dashboard{
		app:    a,
		ctx:    ctx,
		now:    time.Now,
		status: a.Session.Status(),
		users:  a.Users.State(),
		system: a.System.State(),
	}
	var cancel func()
	d.sessionCh, cancel = observe.Latest(a.Session.Subscribe)
	d.unsubscribe = append(d.unsubscribe, cancel)
	d.usersCh, cancel = observe.Latest(a.Users.Subscribe)
	d.unsubscribe = append(d.unsubscribe, cancel)
	d.systemCh, cancel = observe.Latest(a.System.Subscribe)
	d.unsubscribe = append(d.unsubscribe, cancel)
	return d
}

// Close stops the dashboard's subscriptions.
func (d *Dashboard) Close() {
	for _, fn := range d.unsubscribe {
		fn()
	}
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, a *app.App) error {
	d := New(ctx, a)
	defer d.Close()

	p := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}

func waitFor[T any](ctx context.Context, ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-ch:
			return wrap(v)
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Dashboard) waitSession() tea.Cmd {
	return waitFor(d.ctx, d.sessionCh, func(s session.Status) tea.Msg { return sessionMsg(s) })
}

func (d *Dashboard) waitUsers() tea.Cmd {
	return waitFor(d.ctx, d.usersCh, func(s stores.UserState) tea.Msg { return usersMsg(s) })
}

func (d *Dashboard) waitSystem() tea.Cmd {
	return waitFor(d.ctx, d.systemCh, func(s stores.SystemState) tea.Msg { return systemMsg(s) })
}

// refresh expires a stale session, then reloads health, stats and users.
func (d *Dashboard) refresh() tea.Cmd {
	return func() tea.Msg {
		d.app.Session.ExpireIfStale(d.ctx)
		err := errors.Join(
			d.app.System.Initialize(d.ctx),
			d.app.Users.FetchUsers(d.ctx),
		)
		return refreshedMsg{err: err, at: d.now()}
	}
}

func (d *Dashboard) validate() tea.Cmd {
	return func() tea.Msg {
		return validatedMsg{valid: d.app.Session.ValidateSession(d.ctx)}
	}
}

// Init starts the first refresh and the subscriptions.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.refresh(), d.waitSession(), d.waitUsers(), d.waitSystem())
}

// Update is called when a message is received.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		return d, nil

	case sessionMsg:
		d.status = session.Status(msg)
		return d, d.waitSession()

	case usersMsg:
		d.users = stores.UserState(msg)
		return d, d.waitUsers()

	case systemMsg:
		d.system = stores.SystemState(msg)
		return d, d.waitSystem()

	case refreshedMsg:
		if msg.err != nil {
			d.statusMsg = "Refresh failed: " + api.ErrorMessage(msg.err)
		} else {
			d.statusMsg = "Refreshed at " + msg.at.Format("15:04:05")
		}
		return d, nil

	case validatedMsg:
		if msg.valid {
			d.validation = "Session is valid"
		} else {
			d.validation = "Session is not valid"
		}
		return d, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return d, tea.Quit
		case "r":
			d.statusMsg = "Refreshing..."
			return d, d.refresh()
		case "v":
			d.validation = "Validating..."
			return d, d.validate()
		}
	}
	return d, nil
}

// View renders the model.
func (d *Dashboard) View() string {
	width := d.width
	if width <= 0 {
		width = 100
	}
	half := max(30, width/2-2)

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Width(half).Render(d.renderSession()),
		boxStyle.Width(half).Render(d.renderSystem()),
	)
	sections := []string{
		titleStyle.Render("AuthApp"),
		top,
		boxStyle.Width(max(30, width-4)).Render(d.renderUsers()),
		dimStyle.Render("r refresh · v validate session · q quit"),
	}
	if d.statusMsg != "" {
		sections = append(sections, dimStyle.Render(d.statusMsg))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (d *Dashboard) renderSession() string {
	st := d.status
	lines := []string{headStyle.Render("SESSION"), "State: " + stateLabel(st.State)}
	if st.User != nil {
		lines = append(lines,
			"User: "+st.User.Email,
			"Roles: "+roleList(st.User.Roles),
			"Last login: "+stampLabel(st.User.LastLogin),
		)
	}
	if st.Session != nil {
		lines = append(lines, fmt.Sprintf("Expires: %s (%s)",
			st.Session.Expiry.Format("2006-01-02 15:04"), humanize.Time(st.Session.Expiry)))
	}
	if d.validation != "" {
		lines = append(lines, d.validation)
	}
	if st.Loading() {
		lines = append(lines, dimStyle.Render("Working..."))
	}
	if st.Error != "" {
		lines = append(lines, errorStyle.Render(st.Error))
	}
	if st.SuccessMessage != "" {
		lines = append(lines, okStyle.Render(st.SuccessMessage))
	}
	return strings.Join(lines, "\n")
}

func (d *Dashboard) renderSystem() string {
	sys := d.system
	health := sys.HealthStatus()
	switch health {
	case stores.HealthHealthy:
		health = okStyle.Render(health)
	case stores.HealthError:
		health = errorStyle.Render(health)
	}
	lines := []string{
		headStyle.Render("BACKEND"),
		"Health: " + health,
		"Database: " + sys.DatabaseInfo(),
		"Users: " + humanize.Comma(sys.TotalUsers()),
	}
	if sys.Stats != nil {
		lines = append(lines, fmt.Sprintf("Admins: %s  Regular: %s",
			humanize.Comma(sys.Stats.AdminUsers), humanize.Comma(sys.Stats.RegularUsers)))
	}
	if !sys.LastChecked.IsZero() {
		lines = append(lines, dimStyle.Render("Checked "+humanize.Time(sys.LastChecked)))
	}
	if sys.HealthError != "" {
		lines = append(lines, errorStyle.Render(sys.HealthError))
	}
	return strings.Join(lines, "\n")
}

func (d *Dashboard) renderUsers() string {
	us := d.users
	lines := []string{headStyle.Render(fmt.Sprintf("USERS (%d)", us.Count()))}
	switch {
	case us.UsersLoading && us.Count() == 0:
		lines = append(lines, dimStyle.Render("Loading..."))
	case us.UsersError != "":
		lines = append(lines, errorStyle.Render(us.UsersError))
	case us.Count() == 0:
		lines = append(lines, dimStyle.Render("No users"))
	}
	for i, u := range us.Users {
		if i == maxUserRows {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("… %d more", us.Count()-maxUserRows)))
			break
		}
		row := fmt.Sprintf("%4d  %-32s %s", u.ID, u.Email, roleList(u.Roles))
		if !u.IsEnabled() {
			row += "  " + warnStyle.Render("disabled")
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func stateLabel(s session.State) string {
	switch s {
	case session.Authenticated:
		return okStyle.Render(string(s))
	case session.Expired:
		return warnStyle.Render(string(s))
	default:
		return string(s)
	}
}

func roleList(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = strings.TrimPrefix(string(r), "ROLE_")
	}
	return strings.Join(names, ", ")
}

func stampLabel(t *model.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(t.Time)
}
