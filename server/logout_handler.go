package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
)

// LogoutHandler serves the single logout endpoint for both directions:
// a bare browser visit starts SP-initiated logout, while requests
// carrying a SAML payload are classified and answered by the
// orchestrator. The local web session is only torn down once the
// orchestrator reports the session as ended.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var principalID string
		session, ok := s.currentSession(r)
		if ok {
			principalID = session.UserID
		}

		outcome, err := s.orchestrator.HandleLogout(r, principalID)
		if err != nil {
			log.Err(err).Str("principal", principalID).Msg("logout failed")
			http.Error(w, "Logout failed", logoutStatusCode(err))
			return
		}

		if outcome.SessionEnded {
			if ok {
				if err := s.repos.WebSessions.Delete(session.ID); err != nil {
					log.Err(err).Msg("failed to delete web session")
				}
			}
			s.clearSessionCookie(w)
		}

		if outcome.PostBody != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(outcome.PostBody)
			return
		}
		http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
	}
}

func logoutStatusCode(err error) int {
	switch {
	case errors.Is(err, errors.ErrUpstreamLogoutFailed):
		return http.StatusBadGateway
	case errors.Is(err, errors.ErrMalformedMessage),
		errors.Is(err, errors.ErrInvalidSignature),
		errors.Is(err, errors.ErrUnhandledMessageType),
		errors.Is(err, errors.ErrReplayedMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
