package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-saml-sp/internal/config"
	"github.com/jrsteele09/go-saml-sp/server/websession"
)

func cookieTestServer() *Server {
	return &Server{
		config:       config.New(),
		repos:        Repos{WebSessions: websession.NewInMemoryRepo()},
		cookieSecret: []byte("test-cookie-secret"),
	}
}

func issueTestCookie(t *testing.T, s *Server, session websession.Session) *http.Cookie {
	t.Helper()
	require.NoError(t, s.repos.WebSessions.Upsert(session.ID, session))

	recorder := httptest.NewRecorder()
	require.NoError(t, s.issueSessionCookie(recorder, session))

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	return cookies[0]
}

func TestSessionCookieRoundTrip(t *testing.T) {
	s := cookieTestServer()
	session := websession.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Email:     "alice@example.org",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	cookie := issueTestCookie(t, s, session)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)

	resolved, ok := s.currentSession(r)
	require.True(t, ok)
	require.Equal(t, session.ID, resolved.ID)
	require.Equal(t, session.UserID, resolved.UserID)
	require.Equal(t, session.Email, resolved.Email)
}

func TestCurrentSessionRejections(t *testing.T) {
	s := cookieTestServer()
	session := websession.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	t.Run("no cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, ok := s.currentSession(r)
		require.False(t, ok)
	})

	t.Run("tampered token", func(t *testing.T) {
		cookie := issueTestCookie(t, s, session)
		cookie.Value += "x"

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookie)
		_, ok := s.currentSession(r)
		require.False(t, ok)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := cookieTestServer()
		other.cookieSecret = []byte("different-secret")
		cookie := issueTestCookie(t, other, session)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookie)
		_, ok := s.currentSession(r)
		require.False(t, ok)
	})

	t.Run("server side session deleted", func(t *testing.T) {
		cookie := issueTestCookie(t, s, session)
		require.NoError(t, s.repos.WebSessions.Delete(session.ID))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookie)
		_, ok := s.currentSession(r)
		require.False(t, ok)
	})

	t.Run("expired session", func(t *testing.T) {
		expired := websession.Session{
			ID:        "sess-expired",
			UserID:    "user-1",
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		cookie := issueTestCookie(t, s, expired)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookie)
		_, ok := s.currentSession(r)
		require.False(t, ok)
	})
}

func TestClearSessionCookie(t *testing.T) {
	s := cookieTestServer()
	recorder := httptest.NewRecorder()
	s.clearSessionCookie(recorder)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookieName, cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}
