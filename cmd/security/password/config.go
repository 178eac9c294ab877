package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Params controls Argon2id hashing cost. MemoryKiB is in KiB as required
// by argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted password lengths. Lengths are counted in runes.
type Policy struct {
	MinLength int
	MaxLength int
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Params
	Policy Policy
}

// DefaultConfig returns a baseline suitable for interactive logins.
// Parallelism follows the host CPU count, clamped to keep resource usage
// predictable in containers.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Params{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads),
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - HUDDLE_PASSWORD_MIN_LEN
//   - HUDDLE_PASSWORD_MAX_LEN
//   - HUDDLE_ARGON2_MEMORY_KIB
//   - HUDDLE_ARGON2_ITERATIONS
//   - HUDDLE_ARGON2_PARALLELISM
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("HUDDLE_PASSWORD_MIN_LEN"); ok {
		n, err := envUint(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("HUDDLE_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = int(n)
	}

	if v, ok := os.LookupEnv("HUDDLE_PASSWORD_MAX_LEN"); ok {
		n, err := envUint(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("HUDDLE_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = int(n)
	}

	if v, ok := os.LookupEnv("HUDDLE_ARGON2_MEMORY_KIB"); ok {
		n, err := envUint(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("HUDDLE_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = n
	}

	if v, ok := os.LookupEnv("HUDDLE_ARGON2_ITERATIONS"); ok {
		n, err := envUint(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("HUDDLE_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = n
	}

	if v, ok := os.LookupEnv("HUDDLE_ARGON2_PARALLELISM"); ok {
		n, err := envUint(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("HUDDLE_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = uint8(n)
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func envUint(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
