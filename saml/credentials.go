package saml

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"

	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
)

// Credential is the service provider's signing identity: an RSA key pair
// with its certificate, loaded once at startup and threaded into the codec
// and the metadata builder.
type Credential struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey

	keyPair tls.Certificate
}

// LoadCredential reads a PEM encoded certificate and private key pair.
func LoadCredential(certFile, keyFile string) (*Credential, error) {
	keyPair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredential, "load key pair: %v", err)
	}
	return newCredential(keyPair)
}

// CredentialFromKeyStore adapts a goxmldsig key store into a Credential.
// Used by tests with dsig.RandomKeyStoreForTest.
func CredentialFromKeyStore(ks dsig.X509KeyStore) (*Credential, error) {
	key, certDER, err := ks.GetKeyPair()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredential, "key store: %v", err)
	}
	return newCredential(tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	})
}

func newCredential(keyPair tls.Certificate) (*Credential, error) {
	if len(keyPair.Certificate) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidCredential, "key pair without certificate")
	}
	cert, err := x509.ParseCertificate(keyPair.Certificate[0])
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredential, "parse certificate: %v", err)
	}
	key, ok := keyPair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidCredential, "private key is %T, want RSA", keyPair.PrivateKey)
	}
	keyPair.Leaf = cert
	return &Credential{
		Certificate: cert,
		PrivateKey:  key,
		keyPair:     keyPair,
	}, nil
}

// KeyStore exposes the credential in the form goxmldsig and gosaml2
// expect for signing.
func (c *Credential) KeyStore() dsig.X509KeyStore {
	return dsig.TLSCertKeyStore(c.keyPair)
}
