package values

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"

	godigest "github.com/opencontainers/go-digest"
)

// Digest is the content hash of a stored device package.
type Digest struct {
	d godigest.Digest
}

// NewDigest creates a digest from algorithm and hex value.
func NewDigest(algorithm, hexValue string) (Digest, error) {
	return ParseDigest(algorithm + ":" + hexValue)
}

// ParseDigest parses "algorithm:hex". Only sha256 and sha512 are accepted.
func ParseDigest(s string) (Digest, error) {
	d, err := godigest.Parse(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if d.Algorithm() != godigest.SHA256 && d.Algorithm() != godigest.SHA512 {
		return Digest{}, fmt.Errorf("unsupported digest algorithm: %s", d.Algorithm())
	}
	return Digest{d: d}, nil
}

// DigestOf computes the SHA-256 digest of a package archive.
func DigestOf(data []byte) Digest {
	return Digest{d: godigest.FromBytes(data)}
}

func (d Digest) String() string {
	return d.d.String()
}

// Algorithm returns the hash algorithm.
func (d Digest) Algorithm() string {
	return d.d.Algorithm().String()
}

// Value returns the hex-encoded hash.
func (d Digest) Value() string {
	return d.d.Encoded()
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d.d == ""
}

// Verify checks that data hashes to d.
func (d Digest) Verify(data []byte) error {
	if d.IsZero() {
		return fmt.Errorf("digest is unset")
	}
	computed := d.d.Algorithm().FromBytes(data)
	if computed != d.d {
		return fmt.Errorf("digest mismatch: expected %s, got %s", d.d, computed)
	}
	return nil
}
