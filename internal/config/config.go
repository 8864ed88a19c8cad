// Package config carries the tunables the core recognises. There is no CLI
// or environment surface for the core itself; the surrounding tooling loads
// overrides and passes a Config down.
package config

import (
	"os"
	"strconv"
)

// Defaults for the core knobs.
const (
	DefaultMaxSkipPerChain        = 1000
	DefaultMaxSkipSessions        = 5
	DefaultSPKRotationHintSeconds = 604_800
	DefaultOneTimePreKeyBatchSize = 100
)

// Config holds the knobs recognised by the core. The AEAD construction is
// fixed at build time (see internal/crypto) and is deliberately absent here.
type Config struct {
	// MaxSkipPerChain bounds how far a single decrypt may advance a
	// receiving chain while stashing skipped message keys.
	MaxSkipPerChain uint32

	// MaxSkipSessions bounds how many recent peer ratchet keys retain
	// skipped-key entries.
	MaxSkipSessions uint32

	// SPKRotationHintSeconds is the suggested signed-prekey rotation
	// period. The caller enforces it.
	SPKRotationHintSeconds uint32

	// OneTimePreKeyBatchSize is the pool size published per provisioning
	// round.
	OneTimePreKeyBatchSize uint32
}

// Default returns a Config populated with the documented defaults.
func Default() Config {
	return Config{
		MaxSkipPerChain:        DefaultMaxSkipPerChain,
		MaxSkipSessions:        DefaultMaxSkipSessions,
		SPKRotationHintSeconds: DefaultSPKRotationHintSeconds,
		OneTimePreKeyBatchSize: DefaultOneTimePreKeyBatchSize,
	}
}

// FromEnv returns Default overridden by any QUIETWIRE_* variables present
// in the process environment. Unparsable values are ignored.
func FromEnv() Config {
	cfg := Default()
	overrideUint32(&cfg.MaxSkipPerChain, "QUIETWIRE_MAX_SKIP_PER_CHAIN")
	overrideUint32(&cfg.MaxSkipSessions, "QUIETWIRE_MAX_SKIP_SESSIONS")
	overrideUint32(&cfg.SPKRotationHintSeconds, "QUIETWIRE_SPK_ROTATION_HINT_SECONDS")
	overrideUint32(&cfg.OneTimePreKeyBatchSize, "QUIETWIRE_ONE_TIME_PREKEY_BATCH_SIZE")
	return cfg
}

func overrideUint32(dst *uint32, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return
	}
	*dst = uint32(n)
}
