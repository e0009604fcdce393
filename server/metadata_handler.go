package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-saml-sp/saml"
)

// MetadataHandler publishes the service provider's own metadata document
// so IdP operators can register this SP without hand-typing endpoints.
func (s *Server) MetadataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetBaseURL()
		metadata, err := saml.BuildSPMetadata(saml.SPMetadataConfig{
			EntityID:   s.config.GetEntityID(),
			ACSURL:     baseURL + RouteACS,
			SLOURL:     baseURL + RouteLogout,
			Credential: s.credential,
		})
		if err != nil {
			log.Err(err).Msg("failed to build sp metadata")
			http.Error(w, "Failed to build metadata", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/samlmetadata+xml")
		_, _ = w.Write(metadata)
	}
}
