package saml

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"os"
	"strings"

	xrv "github.com/mattermost/xml-roundtrip-validator"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
)

// EntityDescriptor is the subset of SAML metadata this service provider
// consumes from its identity provider: the entity id, the SLO/SSO
// endpoints, and the signing certificates.
type EntityDescriptor struct {
	XMLName          xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntityDescriptor"`
	EntityID         string            `xml:"entityID,attr"`
	IDPSSODescriptor *IDPSSODescriptor `xml:"IDPSSODescriptor"`
}

type IDPSSODescriptor struct {
	KeyDescriptors       []KeyDescriptor `xml:"KeyDescriptor"`
	SingleLogoutServices []Endpoint      `xml:"SingleLogoutService"`
	SingleSignOnServices []Endpoint      `xml:"SingleSignOnService"`
}

type KeyDescriptor struct {
	Use         string `xml:"use,attr"`
	Certificate string `xml:"KeyInfo>X509Data>X509Certificate"`
}

type Endpoint struct {
	Binding          string `xml:"Binding,attr"`
	Location         string `xml:"Location,attr"`
	ResponseLocation string `xml:"ResponseLocation,attr"`
}

// ParseMetadata decodes an IdP entity descriptor document.
func ParseMetadata(data []byte) (*EntityDescriptor, error) {
	if err := xrv.Validate(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidMetadata, "xml validation: %v", err)
	}
	descriptor := &EntityDescriptor{}
	if err := xml.Unmarshal(data, descriptor); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidMetadata, "unmarshal entity descriptor: %v", err)
	}
	if descriptor.EntityID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidMetadata, "entity descriptor without entityID")
	}
	if descriptor.IDPSSODescriptor == nil {
		return nil, errors.Wrapf(errors.ErrInvalidMetadata, "entity descriptor without IDPSSODescriptor")
	}
	return descriptor, nil
}

// LoadMetadataFile reads and parses an IdP entity descriptor from disk.
func LoadMetadataFile(path string) (*EntityDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidMetadata, "read %s", path)
	}
	return ParseMetadata(data)
}

// SLOEndpoint returns the first registered single-logout endpoint for the
// given binding.
func (d *EntityDescriptor) SLOEndpoint(binding string) (Endpoint, error) {
	for _, ep := range d.IDPSSODescriptor.SingleLogoutServices {
		if ep.Binding == binding {
			return ep, nil
		}
	}
	return Endpoint{}, errors.Wrapf(errors.ErrNoActiveIdPEndpoint, "binding %q", binding)
}

// FirstSLOEndpoint returns the first registered single-logout endpoint
// with a binding this service provider can speak.
func (d *EntityDescriptor) FirstSLOEndpoint() (Endpoint, error) {
	for _, ep := range d.IDPSSODescriptor.SingleLogoutServices {
		if ep.Binding == BindingHTTPRedirect || ep.Binding == BindingHTTPPost {
			return ep, nil
		}
	}
	return Endpoint{}, errors.Wrapf(errors.ErrNoActiveIdPEndpoint, "entity %q", d.EntityID)
}

// SSOEndpoint returns the first registered single-sign-on endpoint for the
// given binding, falling back to the first endpoint of any supported
// binding.
func (d *EntityDescriptor) SSOEndpoint(binding string) (Endpoint, error) {
	for _, ep := range d.IDPSSODescriptor.SingleSignOnServices {
		if ep.Binding == binding {
			return ep, nil
		}
	}
	for _, ep := range d.IDPSSODescriptor.SingleSignOnServices {
		if ep.Binding == BindingHTTPRedirect || ep.Binding == BindingHTTPPost {
			return ep, nil
		}
	}
	return Endpoint{}, errors.Wrapf(errors.ErrInvalidMetadata, "no single sign-on endpoint for entity %q", d.EntityID)
}

// SigningCertificates returns the IdP certificates trusted for signature
// validation. Key descriptors without a use attribute count as signing
// keys.
func (d *EntityDescriptor) SigningCertificates() ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, kd := range d.IDPSSODescriptor.KeyDescriptors {
		if kd.Use != "" && kd.Use != "signing" {
			continue
		}
		raw := strings.Map(dropSpace, kd.Certificate)
		if raw == "" {
			continue
		}
		der, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidMetadata, "certificate base64: %v", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidMetadata, "parse certificate: %v", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidMetadata, "no signing certificates for entity %q", d.EntityID)
	}
	return certs, nil
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\n', '\r':
		return -1
	}
	return r
}
