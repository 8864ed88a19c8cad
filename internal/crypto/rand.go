package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"runtime"

	"quietwire/internal/domain"
)

// ReadRandom fills b from the operating system CSRNG. Every call is
// independent; there is no user-seeded path.
func ReadRandom(b []byte) error {
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRandomSource, err)
	}
	return nil
}

// Wipe zeroes b so the secret it held stops living in memory. The
// KeepAlive pins the buffer so the clear cannot be elided; the guarantee
// stays best-effort, as copies made by the GC or the caller are out of
// reach.
//
//go:noinline
func Wipe(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}
