// Package memzero wipes secret-bearing buffers.
//
// Go's garbage collector can keep copies alive and the compiler may elide a
// plain loop that stores zeros into a buffer nothing reads afterwards, so the
// wipe goes through subtle.ConstantTimeCopy which the compiler will not
// remove. Best effort, not a guarantee.
package memzero

import "crypto/subtle"

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// WipeAll wipes every given buffer.
func WipeAll(bufs ...[]byte) {
	for _, b := range bufs {
		Wipe(b)
	}
}
