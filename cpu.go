//go:build !js
// +build !js

package tlsbench

import (
	"golang.org/x/sys/cpu"
)

// hasGCMAsm reports whether the platform has an optimized AES-GCM
// implementation, which makes TLS 1.3 prefer the AES suites.
// Keep the S390X clause in sync with crypto/aes/cipher_s390x.go.
var hasGCMAsm = cpu.X86.HasAES && cpu.X86.HasPCLMULQDQ ||
	cpu.ARM64.HasAES && cpu.ARM64.HasPMULL ||
	cpu.S390X.HasAES && cpu.S390X.HasAESCBC && cpu.S390X.HasAESCTR && (cpu.S390X.HasGHASH || cpu.S390X.HasAESGCM)
