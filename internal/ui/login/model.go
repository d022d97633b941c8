// Package login is the sign-in form shown when there is no session.
package login

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/storefront/internal/theme"
)

// SessionExpiredNotice is shown above the form after a forced logout.
const SessionExpiredNotice = "Your session has expired. Please log in again."

// SubmitMsg carries the credentials entered in the form.
type SubmitMsg struct {
	Email    string
	Password string
}

// CancelMsg is emitted when the form is aborted.
type CancelMsg struct{}

// Model is the Bubble Tea model for the login form.
type Model struct {
	form *huh.Form

	// Form field values (huh binds to these)
	email    string
	password string

	notice     string
	errMsg     string
	submitting bool
	spinner    spinner.Model

	width, height int
}

// New creates the login form. When expired is true the session-expired
// notice is shown above it.
func New(expired bool, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		spinner: sp,
		width:   width,
		height:  height,
	}
	if expired {
		m.notice = SessionExpiredNotice
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) formWidth() int {
	return min(max(m.width-8, 20), 60)
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Submitting reports whether a login request is in flight.
func (m Model) Submitting() bool { return m.submitting }

// Failed resets the form after a rejected login, keeping the email.
func (m *Model) Failed(message string) tea.Cmd {
	m.submitting = false
	m.errMsg = message
	m.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update delegates to the form and emits SubmitMsg once it completes.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.submitting {
		if _, ok := msg.(spinner.TickMsg); ok {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.submitting = true
		m.errMsg = ""
		submit := SubmitMsg{Email: strings.TrimSpace(m.email), Password: m.password}
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return submit })
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the notice, the form and any login error.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Sign in")}
	if m.notice != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorYellow).Render(m.notice), "")
	}
	if m.submitting {
		parts = append(parts, m.spinner.View()+" Signing in...")
	} else {
		parts = append(parts, m.form.View())
	}
	if m.errMsg != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.errMsg))
	}
	parts = append(parts, theme.HelpStyle.Render("enter next · esc quit"))

	return theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("Email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("Enter a valid email address")
	}
	return nil
}
