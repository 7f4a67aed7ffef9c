//go:build js
// +build js

package tlsbench

// JS does not support hardware accelerated CPU instructions for crypto.
var hasGCMAsm = false
