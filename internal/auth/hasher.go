// Package auth holds the credential hasher and the session token service.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a password hashing scheme.
type Algorithm string

const (
	Bcrypt   Algorithm = "bcrypt"
	Argon2id Algorithm = "argon2id"
)

// DefaultBcryptCost puts a single hash in the tens of milliseconds on
// current server hardware.
const DefaultBcryptCost = 12

// bcrypt reads at most 72 bytes of input. Digests written by this package
// hash an HMAC-SHA256 of the password instead, marked with
// bcryptSHA256Prefix, so every byte of a longer password counts. Bare
// bcrypt digests (imported or written by older releases) still verify for
// passwords that fit in 72 bytes and are reported by NeedsRehash.
const (
	bcryptMaxInput     = 72
	bcryptSHA256Prefix = "$bcrypt-sha256$"
	prehashKey         = "crud-express/password/v1"
)

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32

	argon2MaxMemory = 1024 * 1024
	argon2MaxTime   = 16
)

var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrUnknownAlgorithm = errors.New("unknown password hash algorithm")
)

// Hasher produces and checks salted password digests. Digests of either
// supported algorithm verify regardless of which one the Hasher writes.
// A Hasher is safe for concurrent use.
type Hasher struct {
	algorithm  Algorithm
	bcryptCost int

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher writing digests with algorithm. bcryptCost is
// ignored for argon2id.
func NewHasher(algorithm Algorithm, bcryptCost int) (*Hasher, error) {
	switch algorithm {
	case Bcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, oops.Code("AUTH_INVALID_COST").
				With("cost", bcryptCost).
				Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case Argon2id:
	default:
		return nil, oops.Code("AUTH_UNKNOWN_ALGORITHM").With("algorithm", string(algorithm)).Wrap(ErrUnknownAlgorithm)
	}
	return &Hasher{algorithm: algorithm, bcryptCost: bcryptCost}, nil
}

// Algorithm reports the scheme new digests are written with.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash returns a digest of password with a freshly generated salt embedded.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrap(ErrEmptyPassword)
	}

	if h.algorithm == Argon2id {
		return hashArgon2id(password)
	}
	digest, err := bcrypt.GenerateFromPassword(prehash(password), h.bcryptCost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return bcryptSHA256Prefix + string(digest), nil
}

// Verify reports whether password matches digest. Malformed or unsupported
// digests never match.
func (h *Hasher) Verify(password, digest string) bool {
	switch {
	case strings.HasPrefix(digest, bcryptSHA256Prefix):
		inner := strings.TrimPrefix(digest, bcryptSHA256Prefix)
		return isBcrypt(inner) && bcrypt.CompareHashAndPassword([]byte(inner), prehash(password)) == nil
	case isBcrypt(digest):
		// A bare digest cannot tell passwords apart past byte 72.
		if len(password) > bcryptMaxInput {
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	case strings.HasPrefix(digest, "$argon2id$"):
		ok, err := verifyArgon2id(password, digest)
		return err == nil && ok
	default:
		return false
	}
}

// NeedsRehash reports whether digest was written with another algorithm or
// with weaker parameters than this Hasher uses.
func (h *Hasher) NeedsRehash(digest string) bool {
	switch h.algorithm {
	case Argon2id:
		p, err := parseArgon2id(digest)
		if err != nil {
			return true
		}
		return p.memory < argon2Memory || p.time < argon2Time
	default:
		inner, ok := strings.CutPrefix(digest, bcryptSHA256Prefix)
		if !ok || !isBcrypt(inner) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(inner))
		return err != nil || cost < h.bcryptCost
	}
}

// DummyDigest returns a valid digest of a random secret. Verifying against
// it costs the same as a real verification and never succeeds.
func (h *Hasher) DummyDigest() string {
	h.dummyOnce.Do(func() {
		secret := make([]byte, 24)
		_, _ = rand.Read(secret)
		digest, err := h.Hash(base64.RawStdEncoding.EncodeToString(secret))
		if err != nil {
			// Hash of a non-empty input only fails on a broken entropy source.
			panic(err)
		}
		h.dummy = digest
	})
	return h.dummy
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

// prehash maps a password of any length to 44 bytes of bcrypt input.
func prehash(password string) []byte {
	mac := hmac.New(sha256.New, []byte(prehashKey))
	mac.Write([]byte(password))
	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}

func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2id(digest string) (argon2Params, error) {
	var p argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("invalid argon2id digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version %d", version)
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	if p.time == 0 || p.time > argon2MaxTime || p.memory == 0 || p.memory > argon2MaxMemory {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("argon2 cost parameters out of range")
	}
	p.threads = uint8(threads)

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(p.key) == 0 || len(p.key) > 1024 {
		return p, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length %d", len(p.key))
	}
	return p, nil
}

func verifyArgon2id(password, digest string) (bool, error) {
	p, err := parseArgon2id(digest)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}
