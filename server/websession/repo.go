package websession

import "time"

// Session is the local authenticated HTTP session backing the browser
// cookie. It is created at assertion consumption and deleted at logout.
type Session struct {
	ID        string
	UserID    string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
}
