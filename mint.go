//go:build mint
// +build mint

package tlsbench

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bifurcation/mint"
)

// MintEngine is the registry name of the mint adapter. mint is a pure-Go
// TLS 1.3 stack with a real non-blocking mode, so unlike the crypto/tls
// adapter this one polls the engine directly: Handshake() reports
// AlertWouldBlock while flights are outstanding and AlertNoAlert once done.
const MintEngine = "mint"

func init() {
	RegisterHarness(MintEngine, NewMintHarness)
}

// mintPolicy pins the exact TLS 1.3 suite and group; mint honors both.
type mintPolicy struct {
	suite mint.CipherSuite
	group mint.NamedGroup
}

func resolveMintPolicy(cfg CryptoConfig) (mintPolicy, error) {
	var p mintPolicy
	switch cfg.CipherSuite {
	case AES128GCMSHA256:
		p.suite = mint.TLS_AES_128_GCM_SHA256
	case AES256GCMSHA384:
		p.suite = mint.TLS_AES_256_GCM_SHA384
	default:
		return p, fmt.Errorf("%w: %v/%v", ErrNoSecurityPolicy, cfg.CipherSuite, cfg.ECGroup)
	}
	switch cfg.ECGroup {
	case SECP256R1:
		p.group = mint.P256
	case X25519:
		p.group = mint.X25519
	default:
		return p, fmt.Errorf("%w: %v/%v", ErrNoSecurityPolicy, cfg.CipherSuite, cfg.ECGroup)
	}
	return p, nil
}

// mintBridge is the non-blocking counterpart of bridgeConn: an empty inbound
// queue surfaces mint's own retry signal, which the engine returns unchanged
// from Handshake, so no coroutine gate is needed.
type mintBridge struct {
	buf *ConnectedBuffer
}

var _ net.Conn = &mintBridge{}

func (c *mintBridge) Read(p []byte) (int, error) {
	c.buf.Flush()
	n, err := c.buf.Read(p)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, ErrWouldBlock) {
		return 0, mint.AlertWouldBlock
	}
	panic(fmt.Sprintf("tlsbench: connected buffer read failed: %v", err))
}

func (c *mintBridge) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *mintBridge) Close() error                       { return nil }
func (c *mintBridge) LocalAddr() net.Addr                { return bufferAddr{} }
func (c *mintBridge) RemoteAddr() net.Addr               { return bufferAddr{} }
func (c *mintBridge) SetDeadline(t time.Time) error      { return nil }
func (c *mintBridge) SetReadDeadline(t time.Time) error  { return nil }
func (c *mintBridge) SetWriteDeadline(t time.Time) error { return nil }

type mintRole struct {
	buf       *ConnectedBuffer
	conn      *mint.Conn
	completed bool
}

// MintHarness drives mint through the harness contract.
type MintHarness struct {
	client mintRole
	server mintRole
}

var _ TLSBenchHarness = &MintHarness{}

func mintCertificate(chain, key PemType, st SigType) (*mint.Certificate, error) {
	chainPEM, err := materials.PemBytes(chain, st)
	if err != nil {
		return nil, fmt.Errorf("loading certificate chain: %w", err)
	}
	keyPEM, err := materials.PemBytes(key, st)
	if err != nil {
		return nil, fmt.Errorf("loading private key: %w", err)
	}

	var certs []*x509.Certificate
	for block, rest := pem.Decode(chainPEM); block != nil; block, rest = pem.Decode(rest) {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate chain: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("empty certificate chain")
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("no PEM block in private key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	signer, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, errors.New("private key cannot sign")
	}
	return &mint.Certificate{Chain: certs, PrivateKey: signer}, nil
}

func newMintConfig(p mintPolicy, cryptoConfig CryptoConfig, handshakeType HandshakeType) (*mint.Config, error) {
	pool, err := caPool(cryptoConfig.SigType)
	if err != nil {
		return nil, err
	}
	return &mint.Config{
		NonBlocking:       true,
		CipherSuites:      []mint.CipherSuite{p.suite},
		Groups:            []mint.NamedGroup{p.group},
		RootCAs:           pool,
		RequireClientAuth: handshakeType == MutualAuth,
	}, nil
}

// NewMintHarness builds both roles' mint configurations and wires them to the
// channel endpoints.
func NewMintHarness(cryptoConfig CryptoConfig, handshakeType HandshakeType, buffer *ConnectedBuffer) (TLSBenchHarness, error) {
	p, err := resolveMintPolicy(cryptoConfig)
	if err != nil {
		return nil, err
	}

	clientConf, err := newMintConfig(p, cryptoConfig, handshakeType)
	if err != nil {
		return nil, fmt.Errorf("building client config: %w", err)
	}
	clientConf.ServerName = expectedServerName
	if handshakeType == MutualAuth {
		cert, err := mintCertificate(ClientCertChain, ClientKey, cryptoConfig.SigType)
		if err != nil {
			return nil, fmt.Errorf("client identity: %w", err)
		}
		clientConf.Certificates = []*mint.Certificate{cert}
	}

	serverConf, err := newMintConfig(p, cryptoConfig, handshakeType)
	if err != nil {
		return nil, fmt.Errorf("building server config: %w", err)
	}
	cert, err := mintCertificate(ServerCertChain, ServerKey, cryptoConfig.SigType)
	if err != nil {
		return nil, fmt.Errorf("server identity: %w", err)
	}
	serverConf.Certificates = []*mint.Certificate{cert}

	h := &MintHarness{
		client: mintRole{buf: buffer},
		server: mintRole{buf: buffer.Inverse()},
	}
	h.client.conn = mint.NewConn(&mintBridge{buf: h.client.buf}, clientConf, true)
	h.server.conn = mint.NewConn(&mintBridge{buf: h.server.buf}, serverConf, false)
	return h, nil
}

func (h *MintHarness) role(mode Mode) *mintRole {
	if mode == ModeClient {
		return &h.client
	}
	return &h.server
}

func (h *MintHarness) Handshake() error {
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

func (h *MintHarness) step(mode Mode) error {
	role := h.role(mode)
	if role.completed {
		return nil
	}
	alert := role.conn.Handshake()
	// outgoing flight, if any, was staged through the bridge
	role.buf.Flush()
	switch alert {
	case mint.AlertNoAlert, mint.AlertWouldBlock:
		// In non-blocking mode AlertNoAlert only means this poll made
		// progress (the client returns it right after queuing the
		// ClientHello); completion is a connection-state question.
		role.completed = role.conn.GetHsState() == mint.StateConnected
		return nil
	}
	role.completed = false
	return fmt.Errorf("%s handshake: alert %v", mode, alert)
}

func (h *MintHarness) HandshakeCompleted() bool {
	return h.client.completed && h.server.completed
}

func (h *MintHarness) NegotiatedCipherSuite() (CipherSuite, error) {
	if !h.HandshakeCompleted() {
		return 0, ErrHandshakeIncomplete
	}
	suite := h.client.conn.ConnectionState().CipherSuite.Suite
	switch suite {
	case mint.TLS_AES_128_GCM_SHA256:
		return AES128GCMSHA256, nil
	case mint.TLS_AES_256_GCM_SHA384:
		return AES256GCMSHA384, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnknownCipherSuite, suite)
}

func (h *MintHarness) NegotiatedTLS13() (bool, error) {
	if !h.HandshakeCompleted() {
		return false, ErrHandshakeIncomplete
	}
	// mint implements TLS 1.3 only
	return true, nil
}

func (h *MintHarness) Send(sender Mode, data []byte) error {
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

func (h *MintHarness) Recv(receiver Mode, data []byte) error {
	role := h.role(receiver)
	if _, err := io.ReadFull(role.conn, data); err != nil {
		return fmt.Errorf("%s recv: %w", receiver, err)
	}
	return nil
}

func (h *MintHarness) Close() error {
	return nil
}
