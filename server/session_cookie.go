package server

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-saml-sp/server/websession"
)

const sessionCookieName = "sp_session"

// sessionClaims is the JWT payload carried by the session cookie. The
// cookie only references the server-side session; tokens hold no
// authorization state of their own.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (s *Server) issueSessionCookie(w http.ResponseWriter, session websession.Session) error {
	claims := sessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			Issuer:    s.config.GetEntityID(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cookieSecret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// currentSession resolves the request's session cookie to a live
// server-side session. Any verification failure reads as "no session".
func (s *Server) currentSession(r *http.Request) (websession.Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return websession.Session{}, false
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (interface{}, error) {
		return s.cookieSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return websession.Session{}, false
	}

	session, err := s.repos.WebSessions.Get(claims.SessionID)
	if err != nil {
		return websession.Session{}, false
	}
	if time.Now().After(session.ExpiresAt) {
		return websession.Session{}, false
	}
	return session, true
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
