package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Authenticator checks login credentials. A false result means "not
// authenticated"; implementations do not distinguish failure causes to
// callers.
type Authenticator interface {
	Authenticate(ctx context.Context, user, pass string) bool
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, user, pass string) bool

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, user, pass string) bool {
	return f(ctx, user, pass)
}

// AllowNonEmpty accepts any non-empty user and password. It is the
// default when no user table is configured.
var AllowNonEmpty Authenticator = AuthenticatorFunc(func(_ context.Context, user, pass string) bool {
	return user != "" && pass != ""
})

// Argon2id parameters for encoded password hashes.
const (
	argon2Time    = 2
	argon2Memory  = 16 * 1024
	argon2Threads = 2
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// StaticAuthenticator verifies users against a fixed table of encoded
// Argon2id hashes.
type StaticAuthenticator struct {
	users map[string]string
}

// NewStaticAuthenticator validates every entry of users (name to encoded
// hash) and returns an authenticator over them.
func NewStaticAuthenticator(users map[string]string) (*StaticAuthenticator, error) {
	table := make(map[string]string, len(users))
	for name, hash := range users {
		if name == "" {
			return nil, fmt.Errorf("auth: empty user name")
		}
		if _, err := parseArgon2Hash(hash); err != nil {
			return nil, fmt.Errorf("auth: user %q: %w", name, err)
		}
		table[name] = hash
	}
	return &StaticAuthenticator{users: table}, nil
}

// Authenticate implements Authenticator.
func (a *StaticAuthenticator) Authenticate(_ context.Context, user, pass string) bool {
	hash, ok := a.users[user]
	if !ok || pass == "" {
		return false
	}
	return VerifyPassword(pass, hash)
}

// HashPassword encodes pass as
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func HashPassword(pass string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(pass), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// VerifyPassword checks pass against an encoded hash in constant time.
func VerifyPassword(pass, encoded string) bool {
	h, err := parseArgon2Hash(encoded)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(pass), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1
}

type argon2Hash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2Hash(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("malformed argon2 hash")
	}
	if parts[1] != "argon2id" {
		return nil, fmt.Errorf("unsupported algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}

	h := &argon2Hash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, fmt.Errorf("malformed argon2 params: %w", err)
	}
	if h.memory == 0 || h.time == 0 || h.threads == 0 {
		return nil, fmt.Errorf("argon2 params must be positive")
	}

	var err error
	enc := base64.RawStdEncoding
	if h.salt, err = enc.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("malformed salt: %w", err)
	}
	if h.key, err = enc.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return nil, fmt.Errorf("malformed key")
	}
	return h, nil
}
