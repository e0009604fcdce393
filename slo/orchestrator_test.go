package slo_test

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-saml-sp/idstore"
	"github.com/jrsteele09/go-saml-sp/internal/errors"
	"github.com/jrsteele09/go-saml-sp/saml"
	"github.com/jrsteele09/go-saml-sp/slo"
	"github.com/jrsteele09/go-saml-sp/sso"
)

const (
	spEntityID   = "https://sp.example.com/saml/metadata"
	idpEntityID  = "https://idp.example.org/metadata"
	idpSLOURL    = "https://idp.example.org/slo"
	homeURL      = "/"
	principalID  = "user-1"
	sessionIndex = "idx-42"
)

// fixture wires a full orchestrator against in-memory stores, plus an
// idpCodec that plays the IdP: it signs messages the orchestrator will
// trust and verifies messages the orchestrator sends.
type fixture struct {
	orchestrator *slo.Orchestrator
	registry     *sso.InMemoryRegistry
	messageIDs   *idstore.InMemoryStore
	clock        *clockwork.FakeClock
	spCodec      *saml.Codec // signs with the SP key
	idpCodec     *saml.Codec // signs as the IdP
	idpSideCodec *saml.Codec // verifies SP-signed messages, as the IdP would
}

func descriptorFor(entityID string, cert []byte, endpoints ...saml.Endpoint) *saml.EntityDescriptor {
	return &saml.EntityDescriptor{
		EntityID: entityID,
		IDPSSODescriptor: &saml.IDPSSODescriptor{
			KeyDescriptors: []saml.KeyDescriptor{{
				Use:         "signing",
				Certificate: base64.StdEncoding.EncodeToString(cert),
			}},
			SingleLogoutServices: endpoints,
		},
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()

	spCredential, err := saml.CredentialFromKeyStore(dsig.RandomKeyStoreForTest())
	require.NoError(t, err)
	idpCredential, err := saml.CredentialFromKeyStore(dsig.RandomKeyStoreForTest())
	require.NoError(t, err)

	idpDescriptor := descriptorFor(idpEntityID, idpCredential.Certificate.Raw,
		saml.Endpoint{Binding: saml.BindingHTTPRedirect, Location: idpSLOURL})
	spDescriptor := descriptorFor(spEntityID, spCredential.Certificate.Raw)

	spCodec, err := saml.NewCodec(spCredential, idpDescriptor)
	require.NoError(t, err)
	idpCodec, err := saml.NewCodec(idpCredential, idpDescriptor)
	require.NoError(t, err)
	idpSideCodec, err := saml.NewCodec(idpCredential, spDescriptor)
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	registry := sso.NewInMemoryRegistry()
	messageIDs := idstore.NewInMemoryStore(clock)

	orchestrator, err := slo.New(slo.Config{
		EntityID:   spEntityID,
		HomeURL:    homeURL,
		Codec:      spCodec,
		IdP:        idpDescriptor,
		Sessions:   registry,
		MessageIDs: messageIDs,
		MessageTTL: 10 * time.Minute,
		Clock:      clock,
	})
	require.NoError(t, err)

	return &fixture{
		orchestrator: orchestrator,
		registry:     registry,
		messageIDs:   messageIDs,
		clock:        clock,
		spCodec:      spCodec,
		idpCodec:     idpCodec,
		idpSideCodec: idpSideCodec,
	}
}

func bareLogoutRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "https://sp.example.com/saml/logout", nil)
}

// sendToOrchestrator replays an outbound redirect-binding message as the
// inbound HTTP request the browser would deliver.
func sendToOrchestrator(t *testing.T, f *fixture, outbound *saml.Outbound, principal string) (*slo.Outcome, error) {
	t.Helper()
	require.NotEmpty(t, outbound.RedirectURL)
	return f.orchestrator.HandleLogout(httptest.NewRequest(http.MethodGet, outbound.RedirectURL, nil), principal)
}

// decodeOutbound reads the message the orchestrator produced, verifying
// its signature against the SP certificate as the IdP would.
func decodeOutbound(t *testing.T, f *fixture, outcome *slo.Outcome) (saml.Message, string) {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, outcome.RedirectURL, nil)
	binding, present := saml.DetectBinding(r)
	require.True(t, present)
	msg, relayState, err := f.idpSideCodec.Decode(r, binding)
	require.NoError(t, err)
	return msg, relayState
}

func TestInitiateWithoutUpstreamSessions(t *testing.T) {
	f := setup(t)

	outcome, err := f.orchestrator.HandleLogout(bareLogoutRequest(), principalID)
	require.NoError(t, err)
	require.True(t, outcome.SessionEnded)
	require.Equal(t, homeURL, outcome.RedirectURL)
}

func TestInitiateSendsLogoutRequestForNewestLeg(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.registry.Record(principalID, sso.Session{
		SessionIndex: "idx-old", NameID: "alice@example.org", NameIDFormat: saml.NameIDFormatPersistent, EntityID: idpEntityID,
	}))
	require.NoError(t, f.registry.Record(principalID, sso.Session{
		SessionIndex: sessionIndex, NameID: "alice@example.org", NameIDFormat: saml.NameIDFormatPersistent, EntityID: idpEntityID,
	}))

	outcome, err := f.orchestrator.HandleLogout(bareLogoutRequest(), principalID)
	require.NoError(t, err)

	// The local session survives until the IdP confirms.
	require.False(t, outcome.SessionEnded)
	require.NotEmpty(t, f.registry.Active(principalID))

	msg, _ := decodeOutbound(t, f, &slo.Outcome{RedirectURL: outcome.RedirectURL})
	request, ok := msg.(*saml.LogoutRequest)
	require.True(t, ok)
	require.Equal(t, spEntityID, request.Issuer)
	require.Equal(t, idpSLOURL, request.Destination)
	require.Equal(t, sessionIndex, request.SessionIndex)
	require.Equal(t, "alice@example.org", request.NameID)
}

// spInitiatedRequest runs the initiation half of a round trip and returns
// the request the orchestrator sent upstream.
func spInitiatedRequest(t *testing.T, f *fixture) *saml.LogoutRequest {
	t.Helper()
	require.NoError(t, f.registry.Record(principalID, sso.Session{
		SessionIndex: sessionIndex, NameID: "alice@example.org", EntityID: idpEntityID,
	}))
	outcome, err := f.orchestrator.HandleLogout(bareLogoutRequest(), principalID)
	require.NoError(t, err)
	msg, _ := decodeOutbound(t, f, outcome)
	request, ok := msg.(*saml.LogoutRequest)
	require.True(t, ok)
	return request
}

func idpResponse(t *testing.T, f *fixture, inResponseTo, statusCode string) *saml.Outbound {
	t.Helper()
	response := &saml.LogoutResponse{
		ID:           saml.GenerateID(),
		InResponseTo: inResponseTo,
		IssueInstant: f.clock.Now(),
		Destination:  "https://sp.example.com/saml/logout",
		Issuer:       idpEntityID,
		StatusCode:   statusCode,
	}
	outbound, err := f.idpCodec.Encode(response, saml.BindingHTTPRedirect, "https://sp.example.com/saml/logout", "")
	require.NoError(t, err)
	return outbound
}

func TestFinalizeOnIdPConfirmation(t *testing.T) {
	for _, statusCode := range []string{saml.StatusSuccess, saml.StatusPartialLogout} {
		t.Run(statusCode, func(t *testing.T) {
			f := setup(t)
			request := spInitiatedRequest(t, f)

			outcome, err := sendToOrchestrator(t, f, idpResponse(t, f, request.ID, statusCode), principalID)
			require.NoError(t, err)
			require.True(t, outcome.SessionEnded)
			require.Equal(t, homeURL, outcome.RedirectURL)
			require.Empty(t, f.registry.Active(principalID))
		})
	}
}

func TestFinalizeOnIdPFailure(t *testing.T) {
	f := setup(t)
	request := spInitiatedRequest(t, f)

	_, err := sendToOrchestrator(t, f, idpResponse(t, f, request.ID, saml.StatusResponder), principalID)
	require.ErrorIs(t, err, errors.ErrUpstreamLogoutFailed)

	// The upstream session is still live, so the local one must be too.
	require.NotEmpty(t, f.registry.Active(principalID))
}

func TestFinalizeRejectsUnknownInResponseTo(t *testing.T) {
	f := setup(t)
	spInitiatedRequest(t, f)

	_, err := sendToOrchestrator(t, f, idpResponse(t, f, saml.GenerateID(), saml.StatusSuccess), principalID)
	require.ErrorIs(t, err, errors.ErrUnhandledMessageType)
	require.NotEmpty(t, f.registry.Active(principalID))
}

func idpLogoutRequest(t *testing.T, f *fixture, relayState string) (*saml.LogoutRequest, *saml.Outbound) {
	t.Helper()
	request := &saml.LogoutRequest{
		ID:           saml.GenerateID(),
		IssueInstant: f.clock.Now(),
		Destination:  "https://sp.example.com/saml/logout",
		Issuer:       idpEntityID,
		NameID:       "alice@example.org",
		SessionIndex: sessionIndex,
	}
	outbound, err := f.idpCodec.Encode(request, saml.BindingHTTPRedirect, "https://sp.example.com/saml/logout", relayState)
	require.NoError(t, err)
	return request, outbound
}

func TestRespondToIdPInitiatedLogout(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.registry.Record(principalID, sso.Session{SessionIndex: sessionIndex, EntityID: idpEntityID}))

	inbound, outbound := idpLogoutRequest(t, f, "idp-relay")
	outcome, err := sendToOrchestrator(t, f, outbound, principalID)
	require.NoError(t, err)
	require.True(t, outcome.SessionEnded)
	require.Empty(t, f.registry.Active(principalID))

	msg, relayState := decodeOutbound(t, f, outcome)
	require.Equal(t, "idp-relay", relayState, "relay state must be echoed back unchanged")

	response, ok := msg.(*saml.LogoutResponse)
	require.True(t, ok)
	require.Equal(t, inbound.ID, response.InResponseTo)
	require.Equal(t, saml.StatusSuccess, response.StatusCode)
	require.Equal(t, spEntityID, response.Issuer)
}

func TestRespondWithoutLocalSession(t *testing.T) {
	f := setup(t)

	// A second browser's session shares the upstream session index; the
	// IdP's request must tear it down even though this request carries no
	// local cookie.
	require.NoError(t, f.registry.Record("user-2", sso.Session{SessionIndex: sessionIndex, EntityID: idpEntityID}))

	_, outbound := idpLogoutRequest(t, f, "")
	outcome, err := sendToOrchestrator(t, f, outbound, "")
	require.NoError(t, err)
	require.True(t, outcome.SessionEnded)
	require.Empty(t, f.registry.Active("user-2"))
}

func TestReplayedMessageIsRejected(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.registry.Record(principalID, sso.Session{SessionIndex: sessionIndex, EntityID: idpEntityID}))

	_, outbound := idpLogoutRequest(t, f, "")

	_, err := sendToOrchestrator(t, f, outbound, principalID)
	require.NoError(t, err)

	_, err = sendToOrchestrator(t, f, outbound, principalID)
	require.ErrorIs(t, err, errors.ErrReplayedMessage)

	// Past the replay window the id has aged out and only the signature
	// and session state decide the outcome.
	f.clock.Advance(11 * time.Minute)
	_, err = sendToOrchestrator(t, f, outbound, principalID)
	require.NoError(t, err)
}

func TestInvalidSignaturePropagates(t *testing.T) {
	f := setup(t)

	// Signed with the SP key, which the orchestrator must not trust for
	// inbound messages.
	request := &saml.LogoutRequest{
		ID:           saml.GenerateID(),
		IssueInstant: f.clock.Now(),
		Issuer:       idpEntityID,
		NameID:       "alice@example.org",
	}
	outbound, err := f.spCodec.Encode(request, saml.BindingHTTPRedirect, "https://sp.example.com/saml/logout", "")
	require.NoError(t, err)

	_, err = sendToOrchestrator(t, f, outbound, principalID)
	require.ErrorIs(t, err, errors.ErrInvalidSignature)
}
