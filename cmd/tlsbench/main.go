package main

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tlsbench "github.com/lucykorea414/s2n-tls"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := &cli.App{
		Name:  "tlsbench",
		Usage: "Benchmark TLS engines over an in-memory channel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "engine",
				Usage: fmt.Sprintf("TLS engine to benchmark (%s)", strings.Join(tlsbench.Engines(), ", ")),
				Value: tlsbench.StdTLSEngine,
			},
			&cli.StringFlag{
				Name:  "cipher",
				Usage: "cipher suite: aes128 or aes256",
				Value: "aes128",
			},
			&cli.StringFlag{
				Name:  "group",
				Usage: "key-exchange group: p256 or x25519",
				Value: "p256",
			},
			&cli.StringFlag{
				Name:  "sig",
				Usage: "certificate signature type: ecdsa256, ecdsa384 or rsa2048",
				Value: "ecdsa256",
			},
			&cli.BoolFlag{
				Name:  "mutual-auth",
				Usage: "require a client certificate",
			},
			&cli.IntFlag{
				Name:  "iterations",
				Usage: "measured handshake iterations",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "warmup",
				Usage: "unmeasured warmup handshakes",
				Value: 5,
			},
			&cli.IntFlag{
				Name:  "payload",
				Usage: "application-data payload size in bytes",
				Value: 16 * 1024,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set the log level",
				Value:   "info",
			},
		},
		Before: func(c *cli.Context) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
				return fmt.Errorf("parsing log level: %w", err)
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
		Action: func(c *cli.Context) error {
			cfg, ht, err := parseBenchConfig(c)
			if err != nil {
				return err
			}
			return runBench(c, logger, cfg, ht)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("Benchmark failed", "error", err)
		os.Exit(1)
	}
}

func parseBenchConfig(c *cli.Context) (tlsbench.CryptoConfig, tlsbench.HandshakeType, error) {
	cfg := tlsbench.DefaultCryptoConfig()

	switch c.String("cipher") {
	case "aes128":
		cfg.CipherSuite = tlsbench.AES128GCMSHA256
	case "aes256":
		cfg.CipherSuite = tlsbench.AES256GCMSHA384
	default:
		return cfg, 0, fmt.Errorf("unknown cipher suite: %s", c.String("cipher"))
	}

	switch c.String("group") {
	case "p256":
		cfg.ECGroup = tlsbench.SECP256R1
	case "x25519":
		cfg.ECGroup = tlsbench.X25519
	default:
		return cfg, 0, fmt.Errorf("unknown group: %s", c.String("group"))
	}

	switch c.String("sig") {
	case "ecdsa256":
		cfg.SigType = tlsbench.ECDSA256
	case "ecdsa384":
		cfg.SigType = tlsbench.ECDSA384
	case "rsa2048":
		cfg.SigType = tlsbench.RSA2048
	default:
		return cfg, 0, fmt.Errorf("unknown signature type: %s", c.String("sig"))
	}

	ht := tlsbench.ServerAuth
	if c.Bool("mutual-auth") {
		ht = tlsbench.MutualAuth
	}
	return cfg, ht, nil
}

func runBench(c *cli.Context, logger *slog.Logger, cfg tlsbench.CryptoConfig, ht tlsbench.HandshakeType) error {
	engine := c.String("engine")
	iterations := c.Int("iterations")
	payload := c.Int("payload")

	logger.Info("Starting benchmark",
		"engine", engine,
		"cipher", cfg.CipherSuite,
		"group", cfg.ECGroup,
		"sig", cfg.SigType,
		"handshake", ht)

	newHarness := func() (tlsbench.TLSBenchHarness, error) {
		h, err := tlsbench.NewHarness(engine, cfg, ht, tlsbench.NewConnectedBuffer())
		if err != nil {
			return nil, err
		}
		if err := tlsbench.DriveHandshake(h); err != nil {
			h.Close()
			return nil, err
		}
		return h, nil
	}

	for i := 0; i < c.Int("warmup"); i++ {
		h, err := newHarness()
		if err != nil {
			return err
		}
		h.Close()
	}

	// Handshake latency.
	var total, min, max time.Duration
	for i := 0; i < iterations; i++ {
		start := time.Now()
		h, err := newHarness()
		elapsed := time.Since(start)
		if err != nil {
			return err
		}
		if i == 0 {
			logReport(logger, h)
		}
		h.Close()

		total += elapsed
		if min == 0 || elapsed < min {
			min = elapsed
		}
		if elapsed > max {
			max = elapsed
		}
	}
	logger.Info("Handshake latency",
		"iterations", iterations,
		"min", min,
		"mean", total/time.Duration(iterations),
		"max", max)

	// Application-data throughput over one established pair.
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.Close()

	data := make([]byte, payload)
	if _, err := rand.Read(data); err != nil {
		return err
	}
	recv := make([]byte, payload)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := h.Send(tlsbench.ModeClient, data); err != nil {
			return err
		}
		if err := h.Recv(tlsbench.ModeServer, recv); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	mbps := float64(payload) * float64(iterations) / elapsed.Seconds() / (1 << 20)
	logger.Info("Throughput",
		"payload", payload,
		"iterations", iterations,
		"elapsed", elapsed,
		"mib_per_sec", fmt.Sprintf("%.1f", mbps))
	return nil
}

func logReport(logger *slog.Logger, h tlsbench.TLSBenchHarness) {
	suite, err := h.NegotiatedCipherSuite()
	if err != nil {
		logger.Warn("Negotiated cipher suite unavailable", "error", err)
		return
	}
	tls13, err := h.NegotiatedTLS13()
	if err != nil {
		logger.Warn("Negotiated version unavailable", "error", err)
		return
	}
	attrs := []any{"cipher", suite, "tls13", tls13}
	if p, ok := h.(interface{ PolicyName() string }); ok {
		attrs = append(attrs, "policy", p.PolicyName())
	}
	logger.Info("Negotiated parameters", attrs...)
}
