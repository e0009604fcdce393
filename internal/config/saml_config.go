package config

const (
	entityIDVar    = "SP_ENTITY_ID"
	certFileVar    = "SP_CERT_FILE"
	keyFileVar     = "SP_KEY_FILE"
	idpMetadataVar = "IDP_METADATA_FILE"
)

// Saml carries the service provider's own SAML identity: its entity id,
// the signing credential, and where the IdP's metadata lives on disk.
type Saml struct{}

var _ SamlConfig = Saml{}

func (Saml) GetEntityID() string {
	return GetEnv(entityIDVar, "http://localhost:8080/saml/metadata")
}

func (Saml) GetCertFile() string {
	return GetEnv(certFileVar, "./data/sp.crt")
}

func (Saml) GetKeyFile() string {
	return GetEnv(keyFileVar, "./data/sp.key")
}

func (Saml) GetIdPMetadataFile() string {
	return GetEnv(idpMetadataVar, "./data/idp-metadata.xml")
}
