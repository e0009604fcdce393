package saml

import (
	"encoding/base64"

	"github.com/beevik/etree"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
)

// SPMetadataConfig describes the endpoints this service provider
// publishes to its IdP.
type SPMetadataConfig struct {
	EntityID   string
	ACSURL     string
	SLOURL     string
	Credential *Credential
}

// BuildSPMetadata renders the SP entity descriptor served on the metadata
// endpoint.
func BuildSPMetadata(cfg SPMetadataConfig) ([]byte, error) {
	root := etree.NewElement("md:EntityDescriptor")
	root.CreateAttr("xmlns:md", MetadataNamespace)
	root.CreateAttr("entityID", cfg.EntityID)

	descriptor := root.CreateElement("md:SPSSODescriptor")
	descriptor.CreateAttr("protocolSupportEnumeration", ProtocolNamespace)
	descriptor.CreateAttr("AuthnRequestsSigned", "true")
	descriptor.CreateAttr("WantAssertionsSigned", "true")

	keyDescriptor := descriptor.CreateElement("md:KeyDescriptor")
	keyDescriptor.CreateAttr("use", "signing")
	keyInfo := keyDescriptor.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", "http://www.w3.org/2000/09/xmldsig#")
	certEl := keyInfo.CreateElement("ds:X509Data").CreateElement("ds:X509Certificate")
	certEl.SetText(base64.StdEncoding.EncodeToString(cfg.Credential.Certificate.Raw))

	slo := descriptor.CreateElement("md:SingleLogoutService")
	slo.CreateAttr("Binding", BindingHTTPRedirect)
	slo.CreateAttr("Location", cfg.SLOURL)

	sloPost := descriptor.CreateElement("md:SingleLogoutService")
	sloPost.CreateAttr("Binding", BindingHTTPPost)
	sloPost.CreateAttr("Location", cfg.SLOURL)

	acs := descriptor.CreateElement("md:AssertionConsumerService")
	acs.CreateAttr("Binding", BindingHTTPPost)
	acs.CreateAttr("Location", cfg.ACSURL)
	acs.CreateAttr("index", "0")
	acs.CreateAttr("isDefault", "true")

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(root)
	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "serialize sp metadata: %v", err)
	}
	return data, nil
}
