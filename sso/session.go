package sso

// Session is one active federated login leg for a local principal,
// created when an assertion is consumed and read and removed during
// logout.
type Session struct {
	SessionIndex string
	NameID       string
	NameIDFormat string
	EntityID     string
}

// Registry tracks active SSO sessions. A principal may hold several legs
// at once when login chains through multiple IdP/SP hops; the logout
// orchestrator always unwinds the most recently added leg first.
type Registry interface {
	// Record appends a session leg for the principal.
	Record(principalID string, session Session) error

	// Active returns the principal's session legs, most recent last.
	Active(principalID string) []Session

	// Clear removes all legs for the principal. Clearing an empty set is
	// a no-op.
	Clear(principalID string) error

	// DropBySessionIndex removes every leg carrying the session index and
	// returns how many were dropped. Used for IdP-initiated logout that
	// arrives without a local session.
	DropBySessionIndex(sessionIndex string) int
}
