package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcPrefix = "$argon2id$v=19$"

var b64 = base64.RawStdEncoding

// Hash validates password against the policy and returns its PHC-encoded Argon2id hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	p := c.Params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("%sm=%d,t=%d,p=%d$%s$%s",
		phcPrefix, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. A malformed hash, or one whose
// cost exceeds twice the larger of the configured and default costs, yields
// ErrInvalidHash. Hashes made before the cost was lowered stay verifiable so
// that login can rehash them.
func (c Config) Verify(encoded, password string) (bool, error) {
	p, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if !c.acceptsCost(p) {
		return false, ErrInvalidHash
	}

	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters other than c's.
func (c Config) NeedsRehash(encoded string) bool {
	p, _, _, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	cur := c.Params
	return p.MemoryKiB != cur.MemoryKiB || p.Iterations != cur.Iterations ||
		p.Parallelism != cur.Parallelism || p.KeyLength != cur.KeyLength
}

func (c Config) acceptsCost(p Params) bool {
	lim, def := c.Params, DefaultConfig().Params
	if uint64(p.MemoryKiB) > 2*uint64(max(lim.MemoryKiB, def.MemoryKiB)) ||
		uint64(p.Iterations) > 2*uint64(max(lim.Iterations, def.Iterations)) {
		return false
	}
	if uint32(p.Parallelism) > 2*max(uint32(lim.Parallelism), maxDefaultLanes) {
		return false
	}
	return p.SaltLength >= 8 && p.SaltLength <= 64 && p.KeyLength >= 16 && p.KeyLength <= 128
}

func parsePHC(encoded string) (Params, []byte, []byte, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return Params{}, nil, nil, ErrInvalidHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 3 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, iter, lanes uint32
	if _, err := fmt.Sscanf(fields[0], "m=%d,t=%d,p=%d", &mem, &iter, &lanes); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || lanes == 0 || lanes > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[1])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[2])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return Params{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(lanes),     // #nosec G115 -- checked <= 255 above
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by the encoded string
		KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by the encoded string
	}, salt, key, nil
}
