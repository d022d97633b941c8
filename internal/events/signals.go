package events

import "github.com/nhle/storefront/internal/model"

// InvalidationReason says why a session was torn down.
type InvalidationReason string

const (
	ReasonRefreshFailed       InvalidationReason = "refresh_failed"
	ReasonMissingRefreshToken InvalidationReason = "missing_refresh_token"
)

// SessionInvalidated is published when the session is destroyed without
// the user asking for it.
type SessionInvalidated struct {
	Reason InvalidationReason
	Err    error
}

// AuthStateChanged is published on login, logout and forced logout.
type AuthStateChanged struct {
	LoggedIn bool
	// User is set when LoggedIn is true.
	User *model.User
}

// CartChanged is published after any successful cart mutation.
type CartChanged struct {
	ItemCount int
}

// Signals groups the application-level buses. A single value is created at
// startup and passed to the components that publish or listen.
type Signals struct {
	SessionInvalidated Bus[SessionInvalidated]
	AuthChanged        Bus[AuthStateChanged]
	CartChanged        Bus[CartChanged]
}

// NewSignals returns an empty set of buses.
func NewSignals() *Signals {
	return &Signals{}
}
