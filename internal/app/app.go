package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/api"
	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/keys"
	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/notify"
	"github.com/nhle/storefront/internal/realtime"
	"github.com/nhle/storefront/internal/session"
	appsync "github.com/nhle/storefront/internal/sync"
	"github.com/nhle/storefront/internal/ui"
	"github.com/nhle/storefront/internal/ui/badge"
	"github.com/nhle/storefront/internal/ui/categories"
	"github.com/nhle/storefront/internal/ui/chat"
	"github.com/nhle/storefront/internal/ui/command"
	helpview "github.com/nhle/storefront/internal/ui/help"
	"github.com/nhle/storefront/internal/ui/login"
	"github.com/nhle/storefront/internal/ui/notifylist"
	"github.com/nhle/storefront/internal/ui/toast"
)

// HomePath is the route the watch screen guards.
const HomePath = "/notifications"

// actionTimeout bounds a single user-triggered backend call.
const actionTimeout = 20 * time.Second

// Session is the part of session.Manager the UI drives.
type Session interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Logout() error
	CurrentUser() (*model.User, bool)
	Guard(path string) (redirect string, ok bool)
}

// Notifications is the notification center as seen by the UI.
type Notifications interface {
	Subscribe(fn func(notify.Event)) (unsubscribe func())
	Notifications() []model.Notification
	UnreadCount() int
	Chat() []model.ChatMessage
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	Dismiss(id string)
	LastError() error
	ClearError()
}

// Poller runs the periodic pull jobs.
type Poller interface {
	Start() tea.Cmd
	Stop()
	Trigger(job appsync.Job)
	WaitForNextResult() tea.Cmd
}

// Connection is the realtime channel's observable state.
type Connection interface {
	State() realtime.State
	OnStateChange(fn func(realtime.State))
}

// CategorySource loads the product category tree.
type CategorySource interface {
	Categories(ctx context.Context) ([]model.Category, error)
}

// Deps are the long-lived services the root model talks to.
type Deps struct {
	Session    Session
	Center     Notifications
	Poller     Poller
	Connection Connection
	Catalog    CategorySource
	Signals    *events.Signals
	ToastTTL   time.Duration
	Logger     *zap.Logger
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewNotifications
	ViewChat
	ViewCategories
	ViewHelp
	ViewCommand
)

type loginResultMsg struct {
	user *model.User
	err  error
}

type logoutResultMsg struct {
	err error
}

// actionResultMsg reports the outcome of a mark-read style call.
type actionResultMsg struct {
	what string
	err  error
}

type categoriesLoadedMsg struct {
	roots []model.Category
	err   error
}

// Model is the root Bubble Tea model. It routes between views and keeps
// every surface in step with the notification center.
type Model struct {
	deps   Deps
	bridge *bridge
	logger *zap.Logger

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	loginView    login.Model
	listView     notifylist.Model
	chatView     chat.Model
	categoryView categories.Model
	helpView     helpview.Model
	commandView  command.Model
	toast        toast.Model

	user      *model.User
	connState realtime.State
	banner    string
	status    string
	ready     bool
}

// New creates the root model and subscribes to every event source. The
// subscriptions are released when the program quits.
func New(deps Deps) Model {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	k := keys.DefaultKeyMap()

	m := Model{
		deps:         deps,
		bridge:       newBridge(),
		logger:       logger,
		keys:         k,
		layout:       ui.NewLayout(80, 24),
		loginView:    login.New(false, 80, 24),
		listView:     notifylist.New(k, 80, 22),
		chatView:     chat.New(80, 22),
		categoryView: categories.New(k, 80, 22),
		helpView:     helpview.New(k, 80, 22),
		commandView:  command.New(80, 22),
		toast:        toast.New(deps.ToastTTL, 80),
	}

	b := m.bridge
	if deps.Center != nil {
		b.track(deps.Center.Subscribe(func(e notify.Event) {
			b.send(centerEventMsg{event: e})
		}))
	}
	if deps.Signals != nil {
		b.track(deps.Signals.SessionInvalidated.Subscribe(func(e events.SessionInvalidated) {
			b.send(sessionInvalidatedMsg{reason: e.Reason})
		}))
		b.track(deps.Signals.AuthChanged.Subscribe(func(e events.AuthStateChanged) {
			b.send(authChangedMsg{change: e})
		}))
	}
	if deps.Connection != nil {
		m.connState = deps.Connection.State()
		deps.Connection.OnStateChange(func(s realtime.State) {
			b.send(connStateMsg{state: s})
		})
	}

	redirect, ok := deps.Session.Guard(HomePath)
	if ok {
		m.user, _ = deps.Session.CurrentUser()
		m.currentView = ViewNotifications
	} else {
		m.currentView = ViewLogin
		m.loginView = login.New(redirect == session.ExpiredLoginPath, 80, 24)
	}
	m.syncFromCenter()

	return m
}

// Init starts polling, the inbox pump and the first view.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.wait()}
	if m.deps.Poller != nil {
		cmds = append(cmds, m.deps.Poller.Start())
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Init())
	} else {
		cmds = append(cmds, m.loadCategories())
	}
	return tea.Batch(cmds...)
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState { return m.currentView }

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.resize()
		return m.updateActiveView(msg)

	case centerEventMsg:
		m.syncFromCenter()
		var cmd tea.Cmd
		switch msg.event.Kind {
		case notify.EventNotification:
			if n := msg.event.Notification; n != nil {
				cmd = m.toast.Show(n.Type.Label(), n.Message)
			}
		case notify.EventChat:
			if c := msg.event.Chat; c != nil {
				cmd = m.toast.Show("chat · "+senderName(c.Sender), c.Text)
			}
		}
		return m, tea.Batch(cmd, m.bridge.wait())

	case sessionInvalidatedMsg:
		m.logger.Info("session invalidated", zap.String("reason", string(msg.reason)))
		m.user = nil
		m.status = ""
		m.currentView = ViewLogin
		m.loginView = login.New(true, m.layout.ContentWidth(), m.layout.ContentHeight())
		return m, tea.Batch(m.loginView.Init(), m.bridge.wait())

	case authChangedMsg:
		cmds := []tea.Cmd{m.bridge.wait()}
		if msg.change.LoggedIn {
			m.user = msg.change.User
			if m.currentView == ViewLogin {
				m.currentView = ViewNotifications
				cmds = append(cmds, m.loadCategories())
			}
		} else if m.currentView != ViewLogin {
			m.user = nil
			m.currentView = ViewLogin
			m.loginView = login.New(false, m.layout.ContentWidth(), m.layout.ContentHeight())
			cmds = append(cmds, m.loginView.Init())
		}
		m.syncFromCenter()
		return m, tea.Batch(cmds...)

	case connStateMsg:
		m.connState = msg.state
		return m, m.bridge.wait()

	case appsync.SyncResultMsg:
		if msg.Drift != nil {
			m.logger.Debug("unread drift",
				zap.Int("server", msg.Drift.Server),
				zap.Int("local", msg.Drift.Local))
		}
		m.syncFromCenter()
		return m, m.deps.Poller.WaitForNextResult()

	case login.SubmitMsg:
		return m, m.doLogin(msg.Email, msg.Password)

	case login.CancelMsg:
		return m.quit()

	case loginResultMsg:
		if msg.err != nil {
			cmd := m.loginView.Failed(api.Message(msg.err))
			return m, cmd
		}
		m.user = msg.user
		m.status = "Signed in as " + msg.user.DisplayName()
		if m.currentView == ViewLogin {
			m.currentView = ViewNotifications
			return m, m.loadCategories()
		}
		return m, nil

	case logoutResultMsg:
		if msg.err != nil {
			m.banner = "Logout did not complete: " + msg.err.Error()
		}
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.banner = api.Message(msg.err)
		} else if msg.what != "" {
			m.status = msg.what
		}
		m.syncFromCenter()
		return m, nil

	case categoriesLoadedMsg:
		if msg.err != nil {
			m.banner = api.Message(msg.err)
			return m, nil
		}
		m.categoryView.SetTree(msg.roots)
		return m, nil

	case notifylist.OpenMsg:
		if msg.Anchor != "" {
			m.status = "→ " + msg.Anchor
		}
		return m, m.markRead(msg.ID)

	case notifylist.MarkAllMsg:
		return m, m.markAllRead()

	case notifylist.DismissMsg:
		m.deps.Center.Dismiss(msg.ID)
		m.syncFromCenter()
		return m, nil

	case categories.SelectedMsg:
		names := make([]string, len(msg.Path))
		for i, c := range msg.Path {
			names[i] = c.Name
		}
		m.status = "Browse: " + strings.Join(names, " › ")
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(msg)

	case toast.ExpireMsg:
		m.toast, _ = m.toast.Update(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.currentView == ViewLogin {
			break
		}
		if m.currentView == ViewCommand {
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.openOverlay(ViewHelp)
			return m, nil
		case key.Matches(msg, m.keys.Command):
			m.openOverlay(ViewCommand)
			cmd := m.commandView.Focus()
			return m, cmd
		case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
			m.currentView = m.previousView
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.ClearBanner):
			m.clearBanner()
			return m, nil
		case key.Matches(msg, m.keys.Notifications):
			m.currentView = ViewNotifications
			return m, nil
		case key.Matches(msg, m.keys.Chat):
			m.currentView = ViewChat
			return m, nil
		case key.Matches(msg, m.keys.Categories):
			m.currentView = ViewCategories
			return m, nil
		case key.Matches(msg, m.keys.Logout):
			return m, m.doLogout()
		}
	}

	return m.updateActiveView(msg)
}

func (m *Model) openOverlay(v ViewState) {
	if m.currentView != ViewHelp && m.currentView != ViewCommand {
		m.previousView = m.currentView
	}
	m.currentView = v
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewNotifications:
		m.listView, cmd = m.listView.Update(msg)
	case ViewChat:
		m.chatView, cmd = m.chatView.Update(msg)
	case ViewCategories:
		m.categoryView, cmd = m.categoryView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}
	return m, cmd
}

// executeCommand runs a command palette entry.
func (m Model) executeCommand(c command.CommandMsg) (tea.Model, tea.Cmd) {
	switch c.Name {
	case "refresh":
		m.refresh()
	case "read-all":
		return m, m.markAllRead()
	case "read":
		if len(c.Args) == 0 {
			m.status = "usage: read <id>"
			return m, nil
		}
		return m, m.markRead(c.Args[0])
	case "dismiss":
		if len(c.Args) == 0 {
			m.status = "usage: dismiss <id>"
			return m, nil
		}
		m.deps.Center.Dismiss(c.Args[0])
		m.syncFromCenter()
	case "notifications":
		m.currentView = ViewNotifications
	case "chat":
		m.currentView = ViewChat
	case "categories":
		m.currentView = ViewCategories
		if len(c.Args) > 0 && !m.categoryView.Reveal(c.Args[0]) {
			m.status = fmt.Sprintf("no category %q", c.Args[0])
		}
	case "clear":
		m.clearBanner()
	case "logout":
		return m, m.doLogout()
	case "quit", "q":
		return m.quit()
	default:
		m.status = fmt.Sprintf("unknown command %q", c.Name)
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.deps.Poller != nil {
		m.deps.Poller.Trigger(appsync.JobRefresh)
	}
	m.status = "Refreshing..."
}

func (m *Model) clearBanner() {
	m.banner = ""
	if m.deps.Center != nil {
		m.deps.Center.ClearError()
	}
	m.resize()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.bridge.close()
	if m.deps.Poller != nil {
		m.deps.Poller.Stop()
	}
	return m, tea.Quit
}

// syncFromCenter copies the center's current state into every surface.
func (m *Model) syncFromCenter() {
	c := m.deps.Center
	if c == nil {
		return
	}
	m.listView.SetNotifications(c.Notifications())
	m.chatView.SetMessages(c.Chat())
	if err := c.LastError(); err != nil {
		m.banner = api.Message(err)
	}
	if m.user != nil {
		m.helpView.SetUser(m.user.Email)
	} else {
		m.helpView.SetUser("")
	}
	m.resize()
}

// resize hands every view the space left after header, banner and status bar.
func (m *Model) resize() {
	m.layout = m.layout.WithBanner(m.banner != "")
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.listView.SetSize(w, h)
	m.chatView.SetSize(w, h)
	m.categoryView.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.loginView.SetSize(w, h)
	m.toast.SetWidth(w)
}

func (m Model) doLogin(email, password string) tea.Cmd {
	s := m.deps.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		user, err := s.Login(ctx, email, password)
		return loginResultMsg{user: user, err: err}
	}
}

func (m Model) doLogout() tea.Cmd {
	s := m.deps.Session
	return func() tea.Msg {
		return logoutResultMsg{err: s.Logout()}
	}
}

func (m Model) markRead(id string) tea.Cmd {
	c := m.deps.Center
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{err: c.MarkAsRead(ctx, id)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	c := m.deps.Center
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := c.MarkAllAsRead(ctx); err != nil {
			return actionResultMsg{err: err}
		}
		return actionResultMsg{what: "All notifications marked as read"}
	}
}

func (m Model) loadCategories() tea.Cmd {
	src := m.deps.Catalog
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		roots, err := src.Categories(ctx)
		return categoriesLoadedMsg{roots: roots, err: err}
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Storefront"
	if m.user != nil {
		title += " · " + m.user.DisplayName()
	}
	unread := 0
	if m.deps.Center != nil && m.user != nil {
		unread = m.deps.Center.UnreadCount()
	}
	header := m.layout.RenderHeader(title, badge.Render(unread, m.connState.String()))

	content := m.renderContent()
	if t := m.toast.View(); t != "" && m.currentView != ViewLogin {
		content = lipgloss.JoinVertical(lipgloss.Right, t, content)
		content = lipgloss.NewStyle().MaxHeight(m.layout.ContentHeight()).Render(content)
	}

	return m.layout.RenderWithFrame(
		header,
		m.layout.RenderBanner(m.banner),
		content,
		m.layout.RenderStatusBar(m.keyHints()),
	)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewNotifications:
		return m.listView.View()
	case ViewChat:
		return m.chatView.View()
	case ViewCategories:
		return m.categoryView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// keyHints returns the status message, or keyboard hints for the active view.
func (m Model) keyHints() string {
	if m.status != "" && m.currentView != ViewLogin {
		return m.status
	}
	switch m.currentView {
	case ViewLogin:
		return "ctrl+c: quit"
	case ViewNotifications:
		return "enter: open  a: mark all  d: dismiss  r: refresh  2: chat  3: categories  ?: help  q: quit"
	case ViewChat:
		return "↑/↓: scroll  1: notifications  3: categories  ?: help  q: quit"
	case ViewCategories:
		return "enter: expand/select  esc: collapse  1: notifications  ?: help  q: quit"
	case ViewHelp:
		return "esc/?: close"
	case ViewCommand:
		return "enter: run  esc: cancel"
	default:
		return ""
	}
}

func senderName(s string) string {
	if s == "" {
		return "support"
	}
	return s
}
