package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	samltypes "github.com/russellhaering/gosaml2/types"

	"github.com/jrsteele09/go-saml-sp/saml"
	"github.com/jrsteele09/go-saml-sp/server/websession"
	"github.com/jrsteele09/go-saml-sp/sso"
)

// ACSHandler consumes the IdP's signed assertion: it validates the
// response, bootstraps or refreshes the local principal from the released
// attributes, records the SSO session leg for later logout, and issues
// the local session cookie.
func (s *Server) ACSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		encodedResponse := r.PostForm.Get("SAMLResponse")
		if encodedResponse == "" {
			http.Error(w, "Missing SAMLResponse", http.StatusBadRequest)
			return
		}

		info, err := s.sp.RetrieveAssertionInfo(encodedResponse)
		if err != nil {
			log.Warn().Err(err).Msg("assertion validation failed")
			http.Error(w, "Invalid SAML response", http.StatusUnauthorized)
			return
		}
		if info.WarningInfo.InvalidTime || info.WarningInfo.NotInAudience {
			log.Warn().
				Bool("invalid_time", info.WarningInfo.InvalidTime).
				Bool("not_in_audience", info.WarningInfo.NotInAudience).
				Msg("assertion rejected")
			http.Error(w, "Invalid SAML response", http.StatusUnauthorized)
			return
		}

		attributes := make([]samltypes.Attribute, 0, len(info.Values))
		for _, attribute := range info.Values {
			attributes = append(attributes, attribute)
		}
		user, err := s.mapper.Provision(attributes)
		if err != nil {
			log.Err(err).Msg("failed to provision principal from assertion")
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}

		err = s.repos.SSOSessions.Record(user.ID, sso.Session{
			SessionIndex: info.SessionIndex,
			NameID:       info.NameID,
			NameIDFormat: saml.NameIDFormatPersistent,
			EntityID:     s.idp.EntityID,
		})
		if err != nil {
			log.Err(err).Msg("failed to record sso session")
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		session := websession.Session{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Email:     user.Email,
			CreatedAt: now,
			ExpiresAt: now.Add(s.config.GetSessionTTL()),
		}
		if err := s.repos.WebSessions.Upsert(session.ID, session); err != nil {
			log.Err(err).Msg("failed to create web session")
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}
		if err := s.issueSessionCookie(w, session); err != nil {
			log.Err(err).Msg("failed to issue session cookie")
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}

		log.Info().
			Str("principal", user.ID).
			Str("session_index", info.SessionIndex).
			Msg("federated login completed")

		// Relay state is only honoured as a local path, never as an
		// absolute URL.
		target := r.PostForm.Get("RelayState")
		if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
			target = RouteHome
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}
