package tlsbench

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	certValidityPeriod = 180 * 24 * time.Hour

	// expectedServerName is the single name the hostname check accepts, on
	// server certificates always and on client certificates for mutual auth.
	expectedServerName = "localhost"
)

// PemType tags a piece of certificate/key material by role and kind.
type PemType int

const (
	CACert PemType = iota
	ServerKey
	ServerCertChain
	ClientKey
	ClientCertChain
)

// MaterialSource supplies PEM-encoded certificate and key material keyed by
// kind and signature algorithm. The harness only consumes the raw bytes; it
// never parses or stores them beyond building an engine configuration.
type MaterialSource interface {
	PemBytes(PemType, SigType) ([]byte, error)
}

// materials is the source consulted by harness constructors. Tests swap it to
// exercise missing-material failures.
var materials MaterialSource = &generatedMaterials{}

// generatedMaterials builds a CA plus CA-signed server and client chains per
// signature type, once, on first use. Generating instead of shipping fixtures
// keeps the material fresh and the repository free of expiring PEM files.
type generatedMaterials struct {
	mu      sync.Mutex
	bundles map[SigType]*pemBundle
}

type pemBundle struct {
	caCert      []byte
	serverKey   []byte
	serverChain []byte
	clientKey   []byte
	clientChain []byte
}

func (g *generatedMaterials) PemBytes(pt PemType, st SigType) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bundles == nil {
		g.bundles = make(map[SigType]*pemBundle)
	}
	b, ok := g.bundles[st]
	if !ok {
		var err error
		b, err = generateBundle(st)
		if err != nil {
			return nil, err
		}
		g.bundles[st] = b
	}
	switch pt {
	case CACert:
		return b.caCert, nil
	case ServerKey:
		return b.serverKey, nil
	case ServerCertChain:
		return b.serverChain, nil
	case ClientKey:
		return b.clientKey, nil
	case ClientCertChain:
		return b.clientChain, nil
	}
	return nil, fmt.Errorf("tlsbench: unknown pem type %d", pt)
}

func generateKeyPair(st SigType) (crypto.Signer, error) {
	switch st {
	case ECDSA256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case ECDSA384:
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case RSA2048:
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	return nil, fmt.Errorf("tlsbench: unknown signature type %d", st)
}

func marshalKey(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

func marshalCert(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func certTemplate(cn string) (*x509.Certificate, error) {
	sn, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, err
	}
	return &x509.Certificate{
		SerialNumber: sn,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-24 * time.Hour),
		NotAfter:     time.Now().Add(certValidityPeriod),
	}, nil
}

func generateBundle(st SigType) (*pemBundle, error) {
	caKey, err := generateKeyPair(st)
	if err != nil {
		return nil, err
	}
	caTmpl, err := certTemplate("tlsbench CA " + st.String())
	if err != nil {
		return nil, err
	}
	caTmpl.IsCA = true
	caTmpl.BasicConstraintsValid = true
	caTmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, caKey.Public(), caKey)
	if err != nil {
		return nil, err
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, err
	}

	leaf := func(eku x509.ExtKeyUsage) (keyPEM, chainPEM []byte, err error) {
		key, err := generateKeyPair(st)
		if err != nil {
			return nil, nil, err
		}
		tmpl, err := certTemplate(expectedServerName)
		if err != nil {
			return nil, nil, err
		}
		tmpl.DNSNames = []string{expectedServerName}
		tmpl.KeyUsage = x509.KeyUsageDigitalSignature
		tmpl.ExtKeyUsage = []x509.ExtKeyUsage{eku}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, key.Public(), caKey)
		if err != nil {
			return nil, nil, err
		}
		keyPEM, err = marshalKey(key)
		if err != nil {
			return nil, nil, err
		}
		// chain is leaf followed by the issuing CA
		chainPEM = append(marshalCert(der), marshalCert(caDER)...)
		return keyPEM, chainPEM, nil
	}

	b := &pemBundle{caCert: marshalCert(caDER)}
	if b.serverKey, b.serverChain, err = leaf(x509.ExtKeyUsageServerAuth); err != nil {
		return nil, err
	}
	if b.clientKey, b.clientChain, err = leaf(x509.ExtKeyUsageClientAuth); err != nil {
		return nil, err
	}
	return b, nil
}
