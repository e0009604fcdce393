package saml

import (
	"bytes"
	"compress/flate"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	xrv "github.com/mattermost/xml-roundtrip-validator"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
)

// Signature algorithm identifiers for the redirect binding's signed query
// string.
const (
	SigAlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	SigAlgRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
)

const maxMessageSize = 10 * 1024 * 1024

// Codec moves logout messages across HTTP bindings: it detects which
// binding carried an inbound message, decodes and signature-validates it,
// and serializes and signs outbound messages. Outbound messages are signed
// with the SP credential; inbound signatures are checked against the IdP's
// metadata certificates.
type Codec struct {
	credential *Credential
	idpCerts   []*x509.Certificate
	certStore  dsig.X509CertificateStore
}

// NewCodec builds a codec from the SP credential and the IdP metadata the
// inbound messages must be signed by.
func NewCodec(credential *Credential, idp *EntityDescriptor) (*Codec, error) {
	certs, err := idp.SigningCertificates()
	if err != nil {
		return nil, err
	}
	return &Codec{
		credential: credential,
		idpCerts:   certs,
		certStore:  &dsig.MemoryX509CertificateStore{Roots: certs},
	}, nil
}

// Outbound is a wire-ready SAML message: a signed redirect URL for the
// redirect binding or an auto-submitting HTML form for the POST binding.
type Outbound struct {
	Binding     string
	RedirectURL string
	PostBody    []byte
}

// DetectBinding inspects an HTTP interaction and reports which SAML
// binding, if any, carried a message. A bare logout click carries none.
func DetectBinding(r *http.Request) (string, bool) {
	query := r.URL.Query()
	if query.Get("SAMLRequest") != "" || query.Get("SAMLResponse") != "" {
		return BindingHTTPRedirect, true
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			if r.PostForm.Get("SAMLRequest") != "" || r.PostForm.Get("SAMLResponse") != "" {
				return BindingHTTPPost, true
			}
		}
	}
	return "", false
}

// Decode parses and signature-validates the message embedded in the
// request, returning it together with any relay state.
func (c *Codec) Decode(r *http.Request, binding string) (Message, string, error) {
	switch binding {
	case BindingHTTPRedirect:
		return c.decodeRedirect(r)
	case BindingHTTPPost:
		return c.decodePost(r)
	}
	return nil, "", errors.Wrapf(errors.ErrMalformedMessage, "unsupported binding %q", binding)
}

func (c *Codec) decodeRedirect(r *http.Request) (Message, string, error) {
	query := r.URL.Query()
	param := "SAMLRequest"
	encoded := query.Get(param)
	if encoded == "" {
		param = "SAMLResponse"
		encoded = query.Get(param)
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", errors.Wrapf(errors.ErrMalformedMessage, "base64: %v", err)
	}
	raw, err := io.ReadAll(io.LimitReader(flate.NewReader(bytes.NewReader(compressed)), maxMessageSize))
	if err != nil {
		return nil, "", errors.Wrapf(errors.ErrMalformedMessage, "inflate: %v", err)
	}

	if err := c.verifyQuerySignature(r.URL.RawQuery, param); err != nil {
		return nil, "", err
	}

	root, err := parseDocument(raw)
	if err != nil {
		return nil, "", err
	}
	msg, err := ParseMessage(root)
	if err != nil {
		return nil, "", err
	}
	return msg, query.Get("RelayState"), nil
}

func (c *Codec) decodePost(r *http.Request) (Message, string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, "", errors.Wrapf(errors.ErrMalformedMessage, "parse form: %v", err)
	}
	encoded := r.PostForm.Get("SAMLRequest")
	if encoded == "" {
		encoded = r.PostForm.Get("SAMLResponse")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", errors.Wrapf(errors.ErrMalformedMessage, "base64: %v", err)
	}
	root, err := parseDocument(raw)
	if err != nil {
		return nil, "", err
	}

	validated, err := dsig.NewDefaultValidationContext(c.certStore).Validate(root)
	if err != nil {
		return nil, "", errors.Wrapf(errors.ErrInvalidSignature, "enveloped signature: %v", err)
	}
	msg, err := ParseMessage(validated)
	if err != nil {
		return nil, "", err
	}
	return msg, r.PostForm.Get("RelayState"), nil
}

func parseDocument(raw []byte) (*etree.Element, error) {
	if err := xrv.Validate(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedMessage, "xml validation: %v", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedMessage, "xml parse: %v", err)
	}
	if doc.Root() == nil {
		return nil, errors.Wrapf(errors.ErrMalformedMessage, "document without root element")
	}
	return doc.Root(), nil
}

// verifyQuerySignature checks the redirect binding's detached signature.
// The signed octets are the SAMLRequest/SAMLResponse, RelayState and
// SigAlg parameters exactly as they appeared on the wire, in that order.
func (c *Codec) verifyQuerySignature(rawQuery, msgParam string) error {
	parts := map[string]string{}
	for _, kv := range strings.Split(rawQuery, "&") {
		name, _, _ := strings.Cut(kv, "=")
		switch name {
		case "SAMLRequest", "SAMLResponse", "RelayState", "SigAlg", "Signature":
			parts[name] = kv
		}
	}
	if parts["Signature"] == "" || parts["SigAlg"] == "" {
		return errors.Wrapf(errors.ErrInvalidSignature, "redirect message without query signature")
	}

	payload := parts[msgParam]
	if relay, ok := parts["RelayState"]; ok {
		payload += "&" + relay
	}
	payload += "&" + parts["SigAlg"]

	sigAlg, err := queryValue(parts["SigAlg"])
	if err != nil {
		return errors.Wrapf(errors.ErrMalformedMessage, "SigAlg: %v", err)
	}
	sigB64, err := queryValue(parts["Signature"])
	if err != nil {
		return errors.Wrapf(errors.ErrMalformedMessage, "Signature: %v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return errors.Wrapf(errors.ErrMalformedMessage, "signature base64: %v", err)
	}

	var digest []byte
	var hash crypto.Hash
	switch sigAlg {
	case SigAlgRSASHA256:
		sum := sha256.Sum256([]byte(payload))
		digest, hash = sum[:], crypto.SHA256
	case SigAlgRSASHA1:
		sum := sha1.Sum([]byte(payload))
		digest, hash = sum[:], crypto.SHA1
	default:
		return errors.Wrapf(errors.ErrInvalidSignature, "unsupported signature algorithm %q", sigAlg)
	}

	for _, cert := range c.idpCerts {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			continue
		}
		if rsa.VerifyPKCS1v15(pub, hash, digest, sig) == nil {
			return nil
		}
	}
	return errors.Wrapf(errors.ErrInvalidSignature, "query signature matches no idp certificate")
}

func queryValue(kv string) (string, error) {
	_, value, _ := strings.Cut(kv, "=")
	return url.QueryUnescape(value)
}

// Encode serializes and signs the message for the given binding and
// endpoint location.
func (c *Codec) Encode(msg Message, binding, location, relayState string) (*Outbound, error) {
	switch binding {
	case BindingHTTPRedirect:
		return c.encodeRedirect(msg, location, relayState)
	case BindingHTTPPost:
		return c.encodePost(msg, location, relayState)
	}
	return nil, errors.Wrapf(errors.ErrNoActiveIdPEndpoint, "unsupported binding %q", binding)
}

func (c *Codec) encodeRedirect(msg Message, location, relayState string) (*Outbound, error) {
	doc := etree.NewDocument()
	doc.SetRoot(msg.Element())
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "serialize message: %v", err)
	}

	var compressed bytes.Buffer
	writer, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "deflate: %v", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "deflate: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "deflate: %v", err)
	}

	payload := messageParam(msg) + "=" + url.QueryEscape(base64.StdEncoding.EncodeToString(compressed.Bytes()))
	if relayState != "" {
		payload += "&RelayState=" + url.QueryEscape(relayState)
	}
	payload += "&SigAlg=" + url.QueryEscape(SigAlgRSASHA256)

	digest := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.credential.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "sign query: %v", err)
	}
	payload += "&Signature=" + url.QueryEscape(base64.StdEncoding.EncodeToString(sig))

	separator := "?"
	if strings.Contains(location, "?") {
		separator = "&"
	}
	return &Outbound{
		Binding:     BindingHTTPRedirect,
		RedirectURL: location + separator + payload,
	}, nil
}

func (c *Codec) encodePost(msg Message, location, relayState string) (*Outbound, error) {
	signed, err := c.signEnveloped(msg.Element())
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.SetRoot(signed)
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "serialize message: %v", err)
	}

	var body bytes.Buffer
	err = postFormTemplate.Execute(&body, postFormData{
		Action:     location,
		Param:      messageParam(msg),
		Value:      base64.StdEncoding.EncodeToString(raw),
		RelayState: relayState,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "render post form: %v", err)
	}
	return &Outbound{
		Binding:  BindingHTTPPost,
		PostBody: body.Bytes(),
	}, nil
}

// signEnveloped signs the element and repositions the signature directly
// after the Issuer child, as the SAML schema requires.
func (c *Codec) signEnveloped(el *etree.Element) (*etree.Element, error) {
	ctx := dsig.NewDefaultSigningContext(c.credential.KeyStore())
	if err := ctx.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "signature method: %v", err)
	}
	signed, err := ctx.SignEnveloped(el)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "sign message: %v", err)
	}
	children := signed.ChildElements()
	sig := children[len(children)-1]
	signed.RemoveChild(sig)
	signed.InsertChildAt(1, sig)
	return signed, nil
}

func messageParam(msg Message) string {
	if _, ok := msg.(*LogoutResponse); ok {
		return "SAMLResponse"
	}
	return "SAMLRequest"
}

type postFormData struct {
	Action     string
	Param      string
	Value      string
	RelayState string
}

var postFormTemplate = template.Must(template.New("saml-post-form").Parse(`<!doctype html>
<html>
 <head><title>SAML Single Logout</title></head>
 <body onload="document.forms[0].submit()">
  <noscript>
      <p>
        <strong>Note:</strong> Your browser does not support JavaScript,
        you must press the Continue button to proceed.
      </p>
  </noscript>
  <form method="post" action="{{.Action}}">
   <input type="hidden" name="{{.Param}}" value="{{.Value}}" />
   {{if .RelayState}}<input type="hidden" name="RelayState" value="{{.RelayState}}" />{{end}}
   <noscript><input type="submit" value="Continue" /></noscript>
  </form>
 </body>
</html>
`))
