package tlsbench

// CipherSuite identifies an AEAD cipher suite a harness may be configured
// with and reports after negotiation.
type CipherSuite int

const (
	AES128GCMSHA256 CipherSuite = iota
	AES256GCMSHA384
)

func (s CipherSuite) String() string {
	switch s {
	case AES128GCMSHA256:
		return "AES_128_GCM_SHA256"
	case AES256GCMSHA384:
		return "AES_256_GCM_SHA384"
	default:
		return "unknown cipher suite"
	}
}

// ECGroup identifies the elliptic-curve group used for key exchange.
type ECGroup int

const (
	SECP256R1 ECGroup = iota
	X25519
)

func (g ECGroup) String() string {
	switch g {
	case SECP256R1:
		return "secp256r1"
	case X25519:
		return "x25519"
	default:
		return "unknown group"
	}
}

// SigType selects which certificate/key material a role presents; the
// material store is keyed by it.
type SigType int

const (
	ECDSA256 SigType = iota
	ECDSA384
	RSA2048
)

func (t SigType) String() string {
	switch t {
	case ECDSA256:
		return "ecdsa256"
	case ECDSA384:
		return "ecdsa384"
	case RSA2048:
		return "rsa2048"
	default:
		return "unknown signature type"
	}
}

// HandshakeType selects whether the server demands a client certificate.
type HandshakeType int

const (
	ServerAuth HandshakeType = iota
	MutualAuth
)

func (t HandshakeType) String() string {
	switch t {
	case ServerAuth:
		return "server-auth"
	case MutualAuth:
		return "mutual-auth"
	default:
		return "unknown handshake type"
	}
}

// Mode selects which role of a connection pair an operation targets.
type Mode int

const (
	ModeClient Mode = iota
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	default:
		return "unknown mode"
	}
}

// CryptoConfig bundles the abstract cryptographic parameters a harness is
// constructed from. It is immutable and passed by value.
type CryptoConfig struct {
	CipherSuite CipherSuite
	ECGroup     ECGroup
	SigType     SigType
}

// DefaultCryptoConfig is AES-128-GCM-SHA256 over secp256r1 with an ECDSA
// P-256 certificate chain.
func DefaultCryptoConfig() CryptoConfig {
	return CryptoConfig{CipherSuite: AES128GCMSHA256, ECGroup: SECP256R1, SigType: ECDSA256}
}
