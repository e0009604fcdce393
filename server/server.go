package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jrsteele09/go-saml-sp/federation"
	"github.com/jrsteele09/go-saml-sp/idstore"
	"github.com/jrsteele09/go-saml-sp/internal/config"
	"github.com/jrsteele09/go-saml-sp/saml"
	"github.com/jrsteele09/go-saml-sp/server/websession"
	"github.com/jrsteele09/go-saml-sp/slo"
	"github.com/jrsteele09/go-saml-sp/sso"
	"github.com/jrsteele09/go-saml-sp/users"
)

// Repos bundles the stores the server depends on.
type Repos struct {
	Users       users.Repo
	SSOSessions sso.Registry
	WebSessions websession.Repo
	MessageIDs  idstore.Store
}

type Server struct {
	env          string // Environment (e.g., "DEV", "production")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	repos        Repos
	mapper       *federation.Mapper
	orchestrator *slo.Orchestrator
	credential   *saml.Credential
	idp          *saml.EntityDescriptor
	sp           *saml2.SAMLServiceProvider
	cookieSecret []byte
}

func New(cfg config.Config, repos Repos) (*Server, error) {
	credential, err := saml.LoadCredential(cfg.GetCertFile(), cfg.GetKeyFile())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to load SP credential: %w", err)
	}
	idp, err := saml.LoadMetadataFile(cfg.GetIdPMetadataFile())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to load IdP metadata: %w", err)
	}
	return build(cfg, repos, credential, idp)
}

// NewWithDependencies wires the server from already loaded credential and
// metadata. Used by tests that construct both in memory.
func NewWithDependencies(cfg config.Config, repos Repos, credential *saml.Credential, idp *saml.EntityDescriptor) (*Server, error) {
	return build(cfg, repos, credential, idp)
}

func build(cfg config.Config, repos Repos, credential *saml.Credential, idp *saml.EntityDescriptor) (*Server, error) {
	codec, err := saml.NewCodec(credential, idp)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create message codec: %w", err)
	}

	orchestrator, err := slo.New(slo.Config{
		EntityID:   cfg.GetEntityID(),
		HomeURL:    RouteHome,
		Codec:      codec,
		IdP:        idp,
		Sessions:   repos.SSOSessions,
		MessageIDs: repos.MessageIDs,
		MessageTTL: cfg.GetMessageTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create logout orchestrator: %w", err)
	}

	sp, err := assertionProvider(cfg, credential, idp)
	if err != nil {
		return nil, err
	}

	s := &Server{
		mux:          http.NewServeMux(),
		config:       cfg,
		repos:        repos,
		mapper:       federation.NewMapper(repos.Users),
		orchestrator: orchestrator,
		credential:   credential,
		idp:          idp,
		sp:           sp,
		cookieSecret: cookieSecret(cfg),
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func assertionProvider(cfg config.Config, credential *saml.Credential, idp *saml.EntityDescriptor) (*saml2.SAMLServiceProvider, error) {
	ssoEndpoint, err := idp.SSOEndpoint(saml.BindingHTTPRedirect)
	if err != nil {
		return nil, fmt.Errorf("[Server New] idp metadata has no single sign-on endpoint: %w", err)
	}
	certs, err := idp.SigningCertificates()
	if err != nil {
		return nil, fmt.Errorf("[Server New] idp metadata has no signing certificates: %w", err)
	}

	return &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      ssoEndpoint.Location,
		IdentityProviderIssuer:      idp.EntityID,
		ServiceProviderIssuer:       cfg.GetEntityID(),
		AssertionConsumerServiceURL: cfg.GetBaseURL() + RouteACS,
		SignAuthnRequests:           true,
		AudienceURI:                 cfg.GetEntityID(),
		IDPCertificateStore:         &dsig.MemoryX509CertificateStore{Roots: certs},
		SPKeyStore:                  credential.KeyStore(),
		NameIdFormat:                saml.NameIDFormatPersistent,
	}, nil
}

// cookieSecret returns the configured session cookie secret, or an
// ephemeral one when none is configured. The ephemeral secret invalidates
// every session on restart.
func cookieSecret(cfg config.Config) []byte {
	if secret := cfg.GetCookieSecret(); secret != "" {
		return []byte(secret)
	}
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		panic(fmt.Sprintf("generating session cookie secret: %v", err))
	}
	log.Printf("SESSION_COOKIE_SECRET not set, using an ephemeral secret; sessions will not survive a restart\n")
	return []byte(base64.StdEncoding.EncodeToString(random))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
