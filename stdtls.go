package tlsbench

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
)

// StdTLSEngine is the registry name of the crypto/tls adapter.
const StdTLSEngine = "stdtls"

func init() {
	RegisterHarness(StdTLSEngine, NewStdTLSHarness)
}

type stdTLSRole struct {
	buf  *ConnectedBuffer
	gate *stepGate
	conn *tls.Conn

	// completed is true iff the most recent negotiation step for this role
	// returned success; a step that does not complete resets it.
	completed bool
	// finished is latched once negotiation returned at all, so later
	// driving cycles skip the role instead of stepping a dead gate.
	finished bool
	err      error
}

// StdTLSHarness drives crypto/tls through the harness contract. Both
// simulated peers live in one process; the fixed-cycle driver alternates them
// so only one role's state is ever mutated at a time.
type StdTLSHarness struct {
	policy  securityPolicy
	client  stdTLSRole
	server  stdTLSRole
	started bool
}

var _ TLSBenchHarness = &StdTLSHarness{}

// NewStdTLSHarness builds both roles' configurations from cryptoConfig and
// wires each role to its half of the channel. Construction fails if the
// cipher/group combination resolves to no policy or if certificate material
// cannot be loaded or parsed.
func NewStdTLSHarness(cryptoConfig CryptoConfig, handshakeType HandshakeType, buffer *ConnectedBuffer) (TLSBenchHarness, error) {
	policy, err := resolvePolicy(cryptoConfig)
	if err != nil {
		return nil, err
	}

	clientConf, err := newClientTLSConfig(policy, cryptoConfig, handshakeType)
	if err != nil {
		return nil, fmt.Errorf("building client config: %w", err)
	}
	serverConf, err := newServerTLSConfig(policy, cryptoConfig, handshakeType)
	if err != nil {
		return nil, fmt.Errorf("building server config: %w", err)
	}

	h := &StdTLSHarness{
		policy: policy,
		client: stdTLSRole{buf: buffer, gate: newStepGate()},
		server: stdTLSRole{buf: buffer.Inverse(), gate: newStepGate()},
	}
	h.client.conn = tls.Client(&bridgeConn{buf: h.client.buf, gate: h.client.gate}, clientConf)
	h.server.conn = tls.Server(&bridgeConn{buf: h.server.buf, gate: h.server.gate}, serverConf)
	return h, nil
}

// newCommonTLSConfig applies the resolved policy, wipes the default trust
// store (an empty pool, never the system roots) and sets the client
// authentication requirement. Only the server consults ClientAuth; setting it
// on both sides keeps the two configs derived from one common shape.
func newCommonTLSConfig(policy securityPolicy, cryptoConfig CryptoConfig, handshakeType HandshakeType) *tls.Config {
	clientAuth := tls.NoClientCert
	if handshakeType == MutualAuth {
		clientAuth = tls.RequireAndVerifyClientCert
	}
	return &tls.Config{
		MinVersion:       policy.version,
		MaxVersion:       policy.version,
		CurvePreferences: policy.curves,
		CipherSuites:     policy.cipherSuites(cryptoConfig.CipherSuite, cryptoConfig.SigType),
		RootCAs:          x509.NewCertPool(),
		ClientAuth:       clientAuth,
	}
}

func loadKeyPair(chain, key PemType, st SigType) (tls.Certificate, error) {
	chainPEM, err := materials.PemBytes(chain, st)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading certificate chain: %w", err)
	}
	keyPEM, err := materials.PemBytes(key, st)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading private key: %w", err)
	}
	cert, err := tls.X509KeyPair(chainPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parsing key pair: %w", err)
	}
	return cert, nil
}

func caPool(st SigType) (*x509.CertPool, error) {
	caPEM, err := materials.PemBytes(CACert, st)
	if err != nil {
		return nil, fmt.Errorf("loading CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("parsing CA certificate")
	}
	return pool, nil
}

// verifySingleName is the hostname check both roles install where they verify
// a peer certificate: it accepts exactly one expected name.
func verifySingleName(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("no peer certificate")
	}
	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return err
	}
	if err := leaf.VerifyHostname(expectedServerName); err != nil {
		return fmt.Errorf("peer certificate name check: %w", err)
	}
	return nil
}

func newClientTLSConfig(policy securityPolicy, cryptoConfig CryptoConfig, handshakeType HandshakeType) (*tls.Config, error) {
	conf := newCommonTLSConfig(policy, cryptoConfig, handshakeType)

	pool, err := caPool(cryptoConfig.SigType)
	if err != nil {
		return nil, err
	}
	conf.RootCAs = pool
	// ServerName is the single name the standard verification accepts.
	conf.ServerName = expectedServerName
	// Fresh per harness: tickets from the post-handshake flight are kept,
	// but iterations never resume a previous iteration's session.
	conf.ClientSessionCache = newSessionCache()

	if handshakeType == MutualAuth {
		cert, err := loadKeyPair(ClientCertChain, ClientKey, cryptoConfig.SigType)
		if err != nil {
			return nil, fmt.Errorf("client identity: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	return conf, nil
}

func newServerTLSConfig(policy securityPolicy, cryptoConfig CryptoConfig, handshakeType HandshakeType) (*tls.Config, error) {
	conf := newCommonTLSConfig(policy, cryptoConfig, handshakeType)

	cert, err := loadKeyPair(ServerCertChain, ServerKey, cryptoConfig.SigType)
	if err != nil {
		return nil, fmt.Errorf("server identity: %w", err)
	}
	conf.Certificates = []tls.Certificate{cert}

	if handshakeType == MutualAuth {
		pool, err := caPool(cryptoConfig.SigType)
		if err != nil {
			return nil, err
		}
		conf.ClientCAs = pool
		// Chain validity is checked by RequireAndVerifyClientCert; this
		// adds the same single-name check the client applies.
		conf.VerifyPeerCertificate = verifySingleName
	}
	return conf, nil
}

func (h *StdTLSHarness) role(mode Mode) *stdTLSRole {
	if mode == ModeClient {
		return &h.client
	}
	return &h.server
}

// Handshake advances both roles by one driving cycle: step client, step
// server, twice. The first call launches both role runners.
func (h *StdTLSHarness) Handshake() error {
	if !h.started {
		h.client.gate.start(h.client.conn.Handshake)
		h.server.gate.start(h.server.conn.Handshake)
		h.started = true
	}
	for i := 0; i < 2; i++ {
		if err := h.step(ModeClient); err != nil {
			return err
		}
		if err := h.step(ModeServer); err != nil {
			return err
		}
	}
	return nil
}

// step polls one role's negotiation once: run it until it finishes or would
// block. Finishing with success sets the role's completion flag; a blocked
// step clears it without being an error.
func (h *StdTLSHarness) step(mode Mode) error {
	role := h.role(mode)
	if role.finished {
		if role.err != nil {
			return fmt.Errorf("%s handshake: %w", mode, role.err)
		}
		return nil
	}

	out := role.gate.step()
	if !out.finished {
		role.completed = false
		return nil
	}

	role.finished = true
	role.err = out.err
	role.gate.shut = true
	// The final flight (or a fatal alert) may still be staged.
	role.buf.Flush()
	if out.err != nil {
		role.completed = false
		return fmt.Errorf("%s handshake: %w", mode, out.err)
	}
	role.completed = true
	return nil
}

func (h *StdTLSHarness) HandshakeCompleted() bool {
	return h.client.completed && h.server.completed
}

func (h *StdTLSHarness) NegotiatedCipherSuite() (CipherSuite, error) {
	if !h.HandshakeCompleted() {
		return 0, ErrHandshakeIncomplete
	}
	name := tls.CipherSuiteName(h.client.conn.ConnectionState().CipherSuite)
	switch name {
	case "TLS_AES_128_GCM_SHA256",
		"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
		"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":
		return AES128GCMSHA256, nil
	case "TLS_AES_256_GCM_SHA384",
		"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
		"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":
		return AES256GCMSHA384, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCipherSuite, name)
}

func (h *StdTLSHarness) NegotiatedTLS13() (bool, error) {
	if !h.HandshakeCompleted() {
		return false, ErrHandshakeIncomplete
	}
	return h.client.conn.ConnectionState().Version == tls.VersionTLS13, nil
}

// PolicyName reports which security policy construction resolved, for
// benchmark output.
func (h *StdTLSHarness) PolicyName() string {
	return h.policy.name
}

func (h *StdTLSHarness) Send(sender Mode, data []byte) error {
	role := h.role(sender)
	n, err := role.conn.Write(data)
	if err != nil {
		return fmt.Errorf("%s send: %w", sender, err)
	}
	if n != len(data) {
		return fmt.Errorf("%s send: short write (%d of %d bytes)", sender, n, len(data))
	}
	role.buf.Flush()
	return nil
}

func (h *StdTLSHarness) Recv(receiver Mode, data []byte) error {
	role := h.role(receiver)
	if _, err := io.ReadFull(role.conn, data); err != nil {
		return fmt.Errorf("%s recv: %w", receiver, err)
	}
	return nil
}

// Close releases role runners that may still be parked mid-handshake. The
// buffers themselves need no teardown.
func (h *StdTLSHarness) Close() error {
	h.client.gate.shutdown()
	h.server.gate.shutdown()
	return nil
}
