// Package tlsbench drives TLS engines through handshake and data-transfer
// phases over an in-memory duplex channel, so wall-clock measurements reflect
// cryptographic and protocol cost rather than network variance. One adapter
// per engine implements the TLSBenchHarness contract; the benchmark driver
// only ever sees the contract, which keeps comparisons across engines honest.
package tlsbench

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrHandshakeNotConverged is returned by DriveHandshake when the
	// handshake has not completed within the driving-cycle ceiling. It is
	// distinct from an engine failure: no step errored, the roles simply
	// kept exchanging flights.
	ErrHandshakeNotConverged = errors.New("tlsbench: handshake did not converge within driving budget")

	// ErrUnknownCipherSuite is returned when the engine negotiated a suite
	// the adapter does not recognize, which signals an adapter/engine
	// mismatch rather than a protocol condition.
	ErrUnknownCipherSuite = errors.New("tlsbench: unrecognized negotiated cipher suite")

	// ErrHandshakeIncomplete is returned by negotiated-parameter queries
	// issued before both roles completed.
	ErrHandshakeIncomplete = errors.New("tlsbench: handshake not completed")
)

// TLSBenchHarness is the capability set every TLS-engine adapter exposes.
// A harness owns one simulated client-server pair for one benchmark
// iteration; it is not reusable and not safe for concurrent use.
type TLSBenchHarness interface {
	// Handshake advances both roles by one driving cycle: step client,
	// step server, twice. A step polls the role's negotiation once; "still
	// exchanging flights" is not an error.
	Handshake() error

	// HandshakeCompleted reports whether both roles' most recent
	// negotiation step returned success.
	HandshakeCompleted() bool

	// NegotiatedCipherSuite reports the suite both roles agreed on.
	// Valid only after completion.
	NegotiatedCipherSuite() (CipherSuite, error)

	// NegotiatedTLS13 reports whether TLS 1.3 was negotiated.
	// Valid only after completion.
	NegotiatedTLS13() (bool, error)

	// Send writes data through the sender's record layer and flushes it to
	// the channel. It completes synchronously; a not-ready condition here
	// is a harness defect, not something to retry.
	Send(sender Mode, data []byte) error

	// Recv reads exactly len(data) decrypted bytes for the receiver,
	// synchronously. The caller is responsible for having sent matching
	// data from the peer first.
	Recv(receiver Mode, data []byte) error

	Close() error
}

// HarnessConstructor builds a harness for one benchmark iteration. The
// buffer is the client-side endpoint; constructors derive the server side
// with Inverse.
type HarnessConstructor func(CryptoConfig, HandshakeType, *ConnectedBuffer) (TLSBenchHarness, error)

var harnessRegistry = map[string]HarnessConstructor{}

// RegisterHarness makes an engine adapter available under name. Adapters
// register themselves from init, including build-tag gated ones, so the set
// of engines follows the build.
func RegisterHarness(name string, ctor HarnessConstructor) {
	harnessRegistry[name] = ctor
}

// NewHarness constructs a harness backed by the named engine.
func NewHarness(name string, cfg CryptoConfig, ht HandshakeType, buf *ConnectedBuffer) (TLSBenchHarness, error) {
	ctor, ok := harnessRegistry[name]
	if !ok {
		return nil, fmt.Errorf("tlsbench: unknown engine %q (have %v)", name, Engines())
	}
	return ctor(cfg, ht, buf)
}

// Engines lists the registered engine names, sorted.
func Engines() []string {
	names := make([]string, 0, len(harnessRegistry))
	for name := range harnessRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// handshakeCycleCeiling bounds DriveHandshake. The configured policies
// converge in one cycle (TLS 1.3) or two (TLS 1.2); the ceiling is generous
// so that hitting it really does mean the handshake cannot converge.
const handshakeCycleCeiling = 16

// DriveHandshake runs driving cycles until both roles report completion. It
// returns the engine's error if a step fails and ErrHandshakeNotConverged if
// the ceiling is exhausted, so "did not converge" is distinguishable from
// "still in progress" and from an engine rejection.
func DriveHandshake(h TLSBenchHarness) error {
	for i := 0; i < handshakeCycleCeiling; i++ {
		if err := h.Handshake(); err != nil {
			return err
		}
		if h.HandshakeCompleted() {
			return nil
		}
	}
	return ErrHandshakeNotConverged
}
