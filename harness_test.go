package tlsbench

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// missingClientMaterials serves everything except the client's chain and key.
type missingClientMaterials struct {
	MaterialSource
}

func (m missingClientMaterials) PemBytes(pt PemType, st SigType) ([]byte, error) {
	if pt == ClientCertChain || pt == ClientKey {
		return nil, errors.New("client material not provisioned")
	}
	return m.MaterialSource.PemBytes(pt, st)
}

// stuckHarness never errors and never completes, for exercising the
// convergence ceiling.
type stuckHarness struct{}

func (stuckHarness) Handshake() error                            { return nil }
func (stuckHarness) HandshakeCompleted() bool                    { return false }
func (stuckHarness) NegotiatedCipherSuite() (CipherSuite, error) { return 0, ErrHandshakeIncomplete }
func (stuckHarness) NegotiatedTLS13() (bool, error)              { return false, ErrHandshakeIncomplete }
func (stuckHarness) Send(Mode, []byte) error                     { return nil }
func (stuckHarness) Recv(Mode, []byte) error                     { return nil }
func (stuckHarness) Close() error                                { return nil }

func roundTrip(h TLSBenchHarness, sender, receiver Mode, size int) {
	data := make([]byte, size)
	_, err := rand.Read(data)
	Expect(err).ToNot(HaveOccurred())

	Expect(h.Send(sender, data)).To(Succeed())
	got := make([]byte, size)
	Expect(h.Recv(receiver, got)).To(Succeed())
	Expect(bytes.Equal(got, data)).To(BeTrue())
}

var _ = Describe("StdTLS harness", func() {
	for _, suite := range []CipherSuite{AES128GCMSHA256, AES256GCMSHA384} {
		for _, group := range []ECGroup{SECP256R1, X25519} {
			for _, ht := range []HandshakeType{ServerAuth, MutualAuth} {
				suite, group, ht := suite, group, ht
				It(fmt.Sprintf("completes a %v handshake with %v over %v", ht, suite, group), func() {
					cfg := CryptoConfig{CipherSuite: suite, ECGroup: group, SigType: ECDSA256}
					h, err := NewStdTLSHarness(cfg, ht, NewConnectedBuffer())
					Expect(err).ToNot(HaveOccurred())
					defer h.Close()

					Expect(DriveHandshake(h)).To(Succeed())
					Expect(h.HandshakeCompleted()).To(BeTrue())

					negotiated, err := h.NegotiatedCipherSuite()
					Expect(err).ToNot(HaveOccurred())
					Expect(negotiated).To(Equal(suite))

					policy, err := resolvePolicy(cfg)
					Expect(err).ToNot(HaveOccurred())
					tls13, err := h.NegotiatedTLS13()
					Expect(err).ToNot(HaveOccurred())
					Expect(tls13).To(Equal(policy.tls13))

					roundTrip(h, ModeClient, ModeServer, 1024)
					roundTrip(h, ModeServer, ModeClient, 1024)
				})
			}
		}
	}

	for _, st := range []SigType{ECDSA256, ECDSA384, RSA2048} {
		st := st
		It(fmt.Sprintf("handshakes with %v certificate chains", st), func() {
			cfg := DefaultCryptoConfig()
			cfg.SigType = st
			h, err := NewStdTLSHarness(cfg, MutualAuth, NewConnectedBuffer())
			Expect(err).ToNot(HaveOccurred())
			defer h.Close()
			Expect(DriveHandshake(h)).To(Succeed())
			roundTrip(h, ModeClient, ModeServer, 256)
		})
	}

	It("completes the default configuration within two driving cycles", func() {
		h, err := NewStdTLSHarness(DefaultCryptoConfig(), ServerAuth, NewConnectedBuffer())
		Expect(err).ToNot(HaveOccurred())
		defer h.Close()

		Expect(h.Handshake()).To(Succeed())
		Expect(h.Handshake()).To(Succeed())
		Expect(h.HandshakeCompleted()).To(BeTrue())

		negotiated, err := h.NegotiatedCipherSuite()
		Expect(err).ToNot(HaveOccurred())
		Expect(negotiated).To(Equal(AES128GCMSHA256))
	})

	It("round-trips payloads from one byte up to multiple records", func() {
		h, err := NewStdTLSHarness(DefaultCryptoConfig(), ServerAuth, NewConnectedBuffer())
		Expect(err).ToNot(HaveOccurred())
		defer h.Close()
		Expect(DriveHandshake(h)).To(Succeed())

		for _, size := range []int{1, 2, 100, 5 * 1024, 64 * 1024} {
			roundTrip(h, ModeClient, ModeServer, size)
		}
	})

	It("rejects a cipher/group combination with no security policy", func() {
		cfg := DefaultCryptoConfig()
		cfg.CipherSuite = CipherSuite(42)
		_, err := NewStdTLSHarness(cfg, ServerAuth, NewConnectedBuffer())
		Expect(err).To(MatchError(ErrNoSecurityPolicy))
	})

	It("fails construction for mutual auth when client material is missing", func() {
		saved := materials
		materials = missingClientMaterials{saved}
		defer func() { materials = saved }()

		_, err := NewStdTLSHarness(DefaultCryptoConfig(), MutualAuth, NewConnectedBuffer())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("client material not provisioned"))

		// server-auth never touches client material
		h, err := NewStdTLSHarness(DefaultCryptoConfig(), ServerAuth, NewConnectedBuffer())
		Expect(err).ToNot(HaveOccurred())
		defer h.Close()
		Expect(DriveHandshake(h)).To(Succeed())
	})

	It("refuses negotiated-parameter queries before completion", func() {
		h, err := NewStdTLSHarness(DefaultCryptoConfig(), ServerAuth, NewConnectedBuffer())
		Expect(err).ToNot(HaveOccurred())
		defer h.Close()

		_, err = h.NegotiatedCipherSuite()
		Expect(err).To(MatchError(ErrHandshakeIncomplete))
		_, err = h.NegotiatedTLS13()
		Expect(err).To(MatchError(ErrHandshakeIncomplete))
	})

	It("surfaces a receive with no matching send as an error", func() {
		h, err := NewStdTLSHarness(DefaultCryptoConfig(), ServerAuth, NewConnectedBuffer())
		Expect(err).ToNot(HaveOccurred())
		defer h.Close()
		Expect(DriveHandshake(h)).To(Succeed())

		buf := make([]byte, 8)
		Expect(h.Recv(ModeServer, buf)).To(HaveOccurred())
	})
})

var _ = Describe("DriveHandshake", func() {
	It("distinguishes non-convergence from an engine failure", func() {
		Expect(DriveHandshake(stuckHarness{})).To(MatchError(ErrHandshakeNotConverged))
	})
})

var _ = Describe("Engine registry", func() {
	It("lists the crypto/tls engine", func() {
		Expect(Engines()).To(ContainElement(StdTLSEngine))
	})

	It("constructs by name", func() {
		h, err := NewHarness(StdTLSEngine, DefaultCryptoConfig(), ServerAuth, NewConnectedBuffer())
		Expect(err).ToNot(HaveOccurred())
		defer h.Close()
		Expect(DriveHandshake(h)).To(Succeed())
	})

	It("rejects unknown engines", func() {
		_, err := NewHarness("bearssl", DefaultCryptoConfig(), ServerAuth, NewConnectedBuffer())
		Expect(err).To(HaveOccurred())
	})
})
