// Package gitlib provides read-only access to git repositories using libgit2,
// shaped for commit-graph mining: branch listing, commit metadata, per-commit
// change sets and patches.
package gitlib

import (
	"crypto/sha1" //nolint:gosec // git object ids are SHA-1.
	"encoding/hex"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

const (
	// HashSize is the size of a SHA-1 hash in bytes.
	HashSize = 20
	// HashHexSize is the size of a hex-encoded SHA-1 hash.
	HashHexSize = 40
	// shortHashSize is the abbreviated length used in log output.
	shortHashSize = 10
)

// ErrInvalidHash is returned when a string is not a 40 character hex object id.
var ErrInvalidHash = errors.New("invalid object hash")

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ParseHash parses a 40 character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash

	if len(s) != HashHexSize {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	_, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	return h, nil
}

// MustParseHash is ParseHash for constants; it panics on malformed input.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}

	return h
}

// HashOf returns the SHA-1 of data as a Hash. Useful for deriving stable
// synthetic ids.
func HashOf(data []byte) Hash {
	return Hash(sha1.Sum(data)) //nolint:gosec // id derivation, not security.
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	if oid == nil {
		return h
	}

	copy(h[:], oid[:])

	return h
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the abbreviated hex form.
func (h Hash) Short() string {
	return h.String()[:shortHashSize]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText encodes the hash as lowercase hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex-encoded hash.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}

// Hashes renders a list of hashes as hex strings.
func Hashes(hashes []Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()
	}

	return out
}
