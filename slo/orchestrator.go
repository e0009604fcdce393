// Package slo drives the service-provider side of the SAML 2.0 Single
// Logout profile. Every invocation classifies the inbound HTTP
// interaction - no SAML payload, a LogoutResponse, or a LogoutRequest -
// and either initiates an SP-initiated logout, finalizes one, or answers
// an IdP-initiated one.
package slo

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-saml-sp/idstore"
	"github.com/jrsteele09/go-saml-sp/internal/errors"
	"github.com/jrsteele09/go-saml-sp/saml"
	"github.com/jrsteele09/go-saml-sp/sso"
)

// Config wires the orchestrator's collaborators. Everything is passed
// explicitly; there is no ambient container.
type Config struct {
	EntityID   string
	HomeURL    string
	Codec      *saml.Codec
	IdP        *saml.EntityDescriptor
	Sessions   sso.Registry
	MessageIDs idstore.Store
	MessageTTL time.Duration
	Clock      clockwork.Clock
}

type Orchestrator struct {
	entityID   string
	homeURL    string
	codec      *saml.Codec
	idp        *saml.EntityDescriptor
	sessions   sso.Registry
	messageIDs idstore.Store
	messageTTL time.Duration
	clock      clockwork.Clock
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Codec == nil || cfg.IdP == nil || cfg.Sessions == nil || cfg.MessageIDs == nil {
		return nil, fmt.Errorf("[slo New] codec, idp metadata, session registry and id store are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ttl := cfg.MessageTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Orchestrator{
		entityID:   cfg.EntityID,
		homeURL:    cfg.HomeURL,
		codec:      cfg.Codec,
		idp:        cfg.IdP,
		sessions:   cfg.Sessions,
		messageIDs: cfg.MessageIDs,
		messageTTL: ttl,
		clock:      clock,
	}, nil
}

// Outcome is the result of one logout interaction: where to send the
// browser, and whether the local HTTP session must be invalidated.
type Outcome struct {
	// RedirectURL is set for plain redirects and redirect-binding sends.
	RedirectURL string
	// PostBody is an auto-submitting HTML form for the POST binding.
	PostBody []byte
	// SessionEnded reports that the local session is terminated and the
	// transport should drop its cookie.
	SessionEnded bool
}

// HandleLogout processes one logout interaction for the (possibly
// anonymous) principal. The principalID is empty when no local session
// accompanied the request.
func (o *Orchestrator) HandleLogout(r *http.Request, principalID string) (*Outcome, error) {
	binding, present := saml.DetectBinding(r)
	if !present {
		return o.initiate(principalID)
	}

	msg, relayState, err := o.codec.Decode(r, binding)
	if err != nil {
		return nil, err
	}
	if err := o.checkReplay(msg); err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case *saml.LogoutResponse:
		return o.finalize(m, principalID)
	case *saml.LogoutRequest:
		return o.respond(m, relayState, principalID)
	default:
		return nil, errors.Wrapf(errors.ErrUnhandledMessageType, "message %T", msg)
	}
}

// checkReplay rejects a message whose id was already seen from the same
// issuer, then records the id so the next occurrence is rejected.
func (o *Orchestrator) checkReplay(msg saml.Message) error {
	issuer := msg.MessageIssuer()
	if issuer == "" {
		issuer = o.idp.EntityID
	}
	if o.messageIDs.Has(issuer, msg.MessageID()) {
		return errors.Wrapf(errors.ErrReplayedMessage, "issuer %q id %q", issuer, msg.MessageID())
	}
	return o.messageIDs.Set(issuer, msg.MessageID(), o.clock.Now().Add(o.messageTTL))
}

// initiate starts an SP-initiated logout for the most recently added
// session leg. With no active legs there is nothing to log out of
// upstream, so the local session ends immediately.
func (o *Orchestrator) initiate(principalID string) (*Outcome, error) {
	active := o.sessions.Active(principalID)
	if len(active) == 0 {
		if err := o.sessions.Clear(principalID); err != nil {
			return nil, err
		}
		return &Outcome{RedirectURL: o.homeURL, SessionEnded: true}, nil
	}
	leg := active[len(active)-1]

	endpoint, err := o.idp.FirstSLOEndpoint()
	if err != nil {
		return nil, err
	}

	request := &saml.LogoutRequest{
		ID:           saml.GenerateID(),
		IssueInstant: o.clock.Now(),
		Destination:  endpoint.Location,
		Issuer:       o.entityID,
		NameID:       leg.NameID,
		NameIDFormat: leg.NameIDFormat,
		SessionIndex: leg.SessionIndex,
	}

	// Remember our request id so the LogoutResponse can be matched on
	// the way back.
	if err := o.messageIDs.Set(o.entityID, request.ID, o.clock.Now().Add(o.messageTTL)); err != nil {
		return nil, err
	}

	outbound, err := o.codec.Encode(request, endpoint.Binding, endpoint.Location, "")
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("principal", principalID).
		Str("session_index", leg.SessionIndex).
		Str("destination", endpoint.Location).
		Msg("initiating single logout")

	// The local session stays alive until the IdP confirms.
	return &Outcome{RedirectURL: outbound.RedirectURL, PostBody: outbound.PostBody}, nil
}

// finalize completes an SP-initiated round trip from the IdP's
// LogoutResponse.
func (o *Orchestrator) finalize(response *saml.LogoutResponse, principalID string) (*Outcome, error) {
	if response.InResponseTo == "" || !o.messageIDs.Has(o.entityID, response.InResponseTo) {
		return nil, errors.Wrapf(errors.ErrUnhandledMessageType, "logout response %q matches no pending request", response.InResponseTo)
	}

	switch response.StatusCode {
	case saml.StatusSuccess, saml.StatusPartialLogout:
		if err := o.sessions.Clear(principalID); err != nil {
			return nil, err
		}
		log.Info().Str("principal", principalID).Str("status", response.StatusCode).Msg("single logout confirmed")
		return &Outcome{RedirectURL: o.homeURL, SessionEnded: true}, nil
	}

	// Upstream did not complete; the local session must survive so the
	// user is not left believing they are logged out.
	return nil, errors.Wrapf(errors.ErrUpstreamLogoutFailed, "idp returned status %q", response.StatusCode)
}

// respond answers an IdP- or peer-SP-initiated LogoutRequest with a
// Success response and tears the local session down.
func (o *Orchestrator) respond(request *saml.LogoutRequest, relayState, principalID string) (*Outcome, error) {
	endpoint, err := o.idp.FirstSLOEndpoint()
	if err != nil {
		return nil, err
	}
	location := endpoint.Location
	if endpoint.ResponseLocation != "" {
		location = endpoint.ResponseLocation
	}

	response := &saml.LogoutResponse{
		ID:           saml.GenerateID(),
		InResponseTo: request.ID,
		IssueInstant: o.clock.Now(),
		Destination:  location,
		Issuer:       o.entityID,
		StatusCode:   saml.StatusSuccess,
	}

	if principalID != "" {
		if err := o.sessions.Clear(principalID); err != nil {
			return nil, err
		}
	}
	if request.SessionIndex != "" {
		o.sessions.DropBySessionIndex(request.SessionIndex)
	}

	outbound, err := o.codec.Encode(response, endpoint.Binding, location, relayState)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("principal", principalID).
		Str("in_response_to", request.ID).
		Str("session_index", request.SessionIndex).
		Msg("answering idp-initiated logout")

	return &Outcome{
		RedirectURL:  outbound.RedirectURL,
		PostBody:     outbound.PostBody,
		SessionEnded: true,
	}, nil
}
