package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Params is the Argon2id cost. MemoryKiB is passed to argon2.IDKey as-is.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords, counted in runes.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

type Config struct {
	Params Params
	Policy Policy
}

// maxDefaultLanes caps the CPU-derived default parallelism.
const maxDefaultLanes = 4

// DefaultConfig is tuned for interactive logins on a small container.
func DefaultConfig() Config {
	lanes := runtime.NumCPU()
	if lanes < 1 {
		lanes = 1
	}
	if lanes > maxDefaultLanes {
		lanes = maxDefaultLanes
	}

	return Config{
		Params: Params{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(lanes), // #nosec G115 -- clamped to [1..maxDefaultLanes]
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// FromEnv overlays NEARME_PASSWORD_* and NEARME_ARGON2_* variables on DefaultConfig.
//
//	NEARME_PASSWORD_MIN_LEN        1..1024
//	NEARME_PASSWORD_MAX_LEN        1..4096
//	NEARME_PASSWORD_REJECT_VERY_WEAK
//	NEARME_ARGON2_MEMORY_KIB       8192..1048576
//	NEARME_ARGON2_ITERATIONS       1..20
//	NEARME_ARGON2_PARALLELISM      1..64
//	NEARME_ARGON2_SALT_LEN         8..64
//	NEARME_ARGON2_KEY_LEN          16..64
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	ints := []struct {
		key      string
		min, max uint64
		set      func(uint64)
	}{
		{"NEARME_PASSWORD_MIN_LEN", 1, 1024, func(v uint64) { cfg.Policy.MinLength = int(v) }},
		{"NEARME_PASSWORD_MAX_LEN", 1, 4096, func(v uint64) { cfg.Policy.MaxLength = int(v) }},
		{"NEARME_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, func(v uint64) { cfg.Params.MemoryKiB = uint32(v) }},
		{"NEARME_ARGON2_ITERATIONS", 1, 20, func(v uint64) { cfg.Params.Iterations = uint32(v) }},
		{"NEARME_ARGON2_PARALLELISM", 1, 64, func(v uint64) { cfg.Params.Parallelism = uint8(v) }},
		{"NEARME_ARGON2_SALT_LEN", 8, 64, func(v uint64) { cfg.Params.SaltLength = uint32(v) }},
		{"NEARME_ARGON2_KEY_LEN", 16, 64, func(v uint64) { cfg.Params.KeyLength = uint32(v) }},
	}
	for _, it := range ints {
		raw, ok := os.LookupEnv(it.key)
		if !ok {
			continue
		}
		v, err := parseBounded(raw, it.min, it.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", it.key, err)
		}
		it.set(v)
	}

	if raw, ok := os.LookupEnv("NEARME_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("NEARME_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}

func parseBounded(s string, minVal, maxVal uint64) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	if v < minVal || v > maxVal || v > math.MaxUint32 {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return v, nil
}
