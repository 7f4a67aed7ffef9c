package tlsbench

import (
	"crypto/tls"
	"errors"
	"fmt"
)

// ErrNoSecurityPolicy is returned at construction time when the requested
// cipher-suite/group combination has no known security policy.
var ErrNoSecurityPolicy = errors.New("tlsbench: no security policy for cipher suite and group")

// securityPolicy is a named bundle of protocol version, cipher suites and
// key-exchange groups resolved from a (CipherSuite, ECGroup) pair. The name
// records which variant was picked so benchmark output can report it.
type securityPolicy struct {
	name    string
	version uint16 // both MinVersion and MaxVersion
	curves  []tls.CurveID
	tls13   bool
}

func curveFor(g ECGroup) tls.CurveID {
	if g == X25519 {
		return tls.X25519
	}
	return tls.CurveP256
}

// resolvePolicy maps the abstract crypto configuration to a concrete policy.
//
// crypto/tls does not allow pinning TLS 1.3 cipher suites
// (https://github.com/golang/go/issues/29349), so a policy may only promise
// TLS 1.3 when the stack will deterministically negotiate the configured
// suite anyway: with AES-GCM hardware on both simulated peers, TLS 1.3 always
// lands on TLS_AES_128_GCM_SHA256. Every other combination pins the
// equivalent TLS 1.2 ECDHE suite, which crypto/tls does honor.
func resolvePolicy(cfg CryptoConfig) (securityPolicy, error) {
	curves := []tls.CurveID{curveFor(cfg.ECGroup)}

	switch cfg.CipherSuite {
	case AES128GCMSHA256:
		if hasGCMAsm {
			return securityPolicy{
				name:    "tls13-aes128-" + cfg.ECGroup.String(),
				version: tls.VersionTLS13,
				curves:  curves,
				tls13:   true,
			}, nil
		}
		return securityPolicy{
			name:    "tls12-aes128-" + cfg.ECGroup.String(),
			version: tls.VersionTLS12,
			curves:  curves,
		}, nil
	case AES256GCMSHA384:
		return securityPolicy{
			name:    "tls12-aes256-" + cfg.ECGroup.String(),
			version: tls.VersionTLS12,
			curves:  curves,
		}, nil
	}
	return securityPolicy{}, fmt.Errorf("%w: %v/%v", ErrNoSecurityPolicy, cfg.CipherSuite, cfg.ECGroup)
}

// cipherSuites returns the TLS 1.2 suite list for the policy. The
// key-exchange half follows the certificate's signature algorithm. For a
// TLS 1.3 policy the list is advisory only and crypto/tls ignores it.
func (p securityPolicy) cipherSuites(suite CipherSuite, sig SigType) []uint16 {
	if sig == RSA2048 {
		if suite == AES256GCMSHA384 {
			return []uint16{tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384}
		}
		return []uint16{tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256}
	}
	if suite == AES256GCMSHA384 {
		return []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384}
	}
	return []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}
}
