package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// LoginHandler starts an SP-initiated login by redirecting the browser to
// the IdP with a signed AuthnRequest. An optional "return" query
// parameter rides along as relay state and brings the user back to a
// local path after the assertion is consumed.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relayState := r.URL.Query().Get("return")
		if !strings.HasPrefix(relayState, "/") {
			relayState = ""
		}

		authURL, err := s.sp.BuildAuthURL(relayState)
		if err != nil {
			log.Err(err).Msg("failed to build authentication request")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}
