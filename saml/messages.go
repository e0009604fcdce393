package saml

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
)

// Namespace, binding, status and name-id format URNs from the SAML 2.0
// core and bindings specifications.
const (
	ProtocolNamespace  = "urn:oasis:names:tc:SAML:2.0:protocol"
	AssertionNamespace = "urn:oasis:names:tc:SAML:2.0:assertion"
	MetadataNamespace  = "urn:oasis:names:tc:SAML:2.0:metadata"

	BindingHTTPRedirect = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	BindingHTTPPost     = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"

	StatusSuccess       = "urn:oasis:names:tc:SAML:2.0:status:Success"
	StatusPartialLogout = "urn:oasis:names:tc:SAML:2.0:status:PartialLogout"
	StatusRequester     = "urn:oasis:names:tc:SAML:2.0:status:Requester"
	StatusResponder     = "urn:oasis:names:tc:SAML:2.0:status:Responder"

	NameIDFormatUnspecified  = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDFormatEmailAddress = "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"
	NameIDFormatPersistent   = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	NameIDFormatTransient    = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"

	samlVersion = "2.0"
	timeFormat  = "2006-01-02T15:04:05Z"
)

// Message is the tagged union of single-logout protocol messages. Exactly
// two variants exist: *LogoutRequest and *LogoutResponse. Messages are
// constructed immediately before sending or parsed immediately after
// receiving; they are never stored.
type Message interface {
	message()

	// MessageID returns the unique id of the message.
	MessageID() string
	// MessageIssuer returns the entity id of the party that issued the
	// message.
	MessageIssuer() string
	// Element renders the message as an XML element ready for signing
	// and serialization.
	Element() *etree.Element
}

// LogoutRequest asks the receiving party to terminate the session
// identified by SessionIndex / NameID.
type LogoutRequest struct {
	ID           string
	IssueInstant time.Time
	Destination  string
	Issuer       string
	NameID       string
	NameIDFormat string
	SessionIndex string
}

// LogoutResponse reports the outcome of a LogoutRequest identified by
// InResponseTo.
type LogoutResponse struct {
	ID           string
	InResponseTo string
	IssueInstant time.Time
	Destination  string
	Issuer       string
	StatusCode   string
}

func (*LogoutRequest) message()  {}
func (*LogoutResponse) message() {}

func (r *LogoutRequest) MessageID() string      { return r.ID }
func (r *LogoutRequest) MessageIssuer() string  { return r.Issuer }
func (r *LogoutResponse) MessageID() string     { return r.ID }
func (r *LogoutResponse) MessageIssuer() string { return r.Issuer }

func (r *LogoutRequest) Element() *etree.Element {
	el := etree.NewElement("samlp:LogoutRequest")
	el.CreateAttr("xmlns:samlp", ProtocolNamespace)
	el.CreateAttr("xmlns:saml", AssertionNamespace)
	el.CreateAttr("ID", r.ID)
	el.CreateAttr("Version", samlVersion)
	el.CreateAttr("IssueInstant", r.IssueInstant.UTC().Format(timeFormat))
	if r.Destination != "" {
		el.CreateAttr("Destination", r.Destination)
	}
	issuer := el.CreateElement("saml:Issuer")
	issuer.SetText(r.Issuer)
	nameID := el.CreateElement("saml:NameID")
	if r.NameIDFormat != "" {
		nameID.CreateAttr("Format", r.NameIDFormat)
	}
	nameID.SetText(r.NameID)
	if r.SessionIndex != "" {
		si := el.CreateElement("samlp:SessionIndex")
		si.SetText(r.SessionIndex)
	}
	return el
}

func (r *LogoutResponse) Element() *etree.Element {
	el := etree.NewElement("samlp:LogoutResponse")
	el.CreateAttr("xmlns:samlp", ProtocolNamespace)
	el.CreateAttr("xmlns:saml", AssertionNamespace)
	el.CreateAttr("ID", r.ID)
	el.CreateAttr("Version", samlVersion)
	el.CreateAttr("IssueInstant", r.IssueInstant.UTC().Format(timeFormat))
	if r.InResponseTo != "" {
		el.CreateAttr("InResponseTo", r.InResponseTo)
	}
	if r.Destination != "" {
		el.CreateAttr("Destination", r.Destination)
	}
	issuer := el.CreateElement("saml:Issuer")
	issuer.SetText(r.Issuer)
	status := el.CreateElement("samlp:Status")
	statusCode := status.CreateElement("samlp:StatusCode")
	statusCode.CreateAttr("Value", r.StatusCode)
	return el
}

// ParseMessage classifies and decodes a SAML protocol element into one of
// the Message variants. A protocol element of any other type yields
// ErrUnhandledMessageType; structural problems yield ErrMalformedMessage.
func ParseMessage(root *etree.Element) (Message, error) {
	if root == nil {
		return nil, errors.Wrapf(errors.ErrMalformedMessage, "empty document")
	}
	if root.NamespaceURI() != ProtocolNamespace {
		return nil, errors.Wrapf(errors.ErrUnhandledMessageType, "unexpected root namespace %q", root.NamespaceURI())
	}

	switch root.Tag {
	case "LogoutRequest":
		return parseLogoutRequest(root)
	case "LogoutResponse":
		return parseLogoutResponse(root)
	}
	return nil, errors.Wrapf(errors.ErrUnhandledMessageType, "message type %q", root.Tag)
}

func parseLogoutRequest(el *etree.Element) (*LogoutRequest, error) {
	req := &LogoutRequest{
		ID:          el.SelectAttrValue("ID", ""),
		Destination: el.SelectAttrValue("Destination", ""),
	}
	instant, err := parseInstant(el.SelectAttrValue("IssueInstant", ""))
	if err != nil {
		return nil, err
	}
	req.IssueInstant = instant

	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "Issuer":
			req.Issuer = child.Text()
		case "NameID":
			req.NameID = child.Text()
			req.NameIDFormat = child.SelectAttrValue("Format", "")
		case "SessionIndex":
			req.SessionIndex = child.Text()
		}
	}
	if req.ID == "" {
		return nil, errors.Wrapf(errors.ErrMalformedMessage, "logout request without ID")
	}
	return req, nil
}

func parseLogoutResponse(el *etree.Element) (*LogoutResponse, error) {
	resp := &LogoutResponse{
		ID:           el.SelectAttrValue("ID", ""),
		InResponseTo: el.SelectAttrValue("InResponseTo", ""),
		Destination:  el.SelectAttrValue("Destination", ""),
	}
	instant, err := parseInstant(el.SelectAttrValue("IssueInstant", ""))
	if err != nil {
		return nil, err
	}
	resp.IssueInstant = instant

	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "Issuer":
			resp.Issuer = child.Text()
		case "Status":
			for _, sc := range child.ChildElements() {
				if sc.Tag == "StatusCode" {
					resp.StatusCode = sc.SelectAttrValue("Value", "")
					break
				}
			}
		}
	}
	if resp.ID == "" {
		return nil, errors.Wrapf(errors.ErrMalformedMessage, "logout response without ID")
	}
	return resp, nil
}

func parseInstant(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.Wrapf(errors.ErrMalformedMessage, "missing IssueInstant")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrMalformedMessage, "bad IssueInstant %q", value)
	}
	return t, nil
}

// GenerateID returns a cryptographically unguessable message id. The
// leading underscore keeps it a valid XML ID, which must not start with a
// digit.
func GenerateID() string {
	b := make([]byte, 21)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("saml: reading random bytes: %v", err))
	}
	return "_" + hex.EncodeToString(b)
}
