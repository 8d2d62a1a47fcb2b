// Package hashbind binds a subject, an action and a certificate fingerprint into
// the digest that anchors the integrity of each audit record.
package hashbind

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "certtrail/pkg/domain-errors"
)

// Algorithm selects the digest function. It is fixed for the lifetime of a
// trail: records bound with one algorithm never verify under the other.
type Algorithm string

const (
	SHA256    Algorithm = "sha256"
	Keccak256 Algorithm = "keccak256"
)

// ParseAlgorithm accepts the configuration spelling of an algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case SHA256, "":
		return SHA256, nil
	case Keccak256:
		return Keccak256, nil
	}
	return "", fmt.Errorf("unsupported hash algorithm %q", s)
}

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Fields is the projection of a stored record that Verify needs.
type Fields struct {
	SubjectID         string
	Action            string
	CallerFingerprint string
	Digest            string
}

// Binder is a pure function object; the zero value uses SHA-256.
type Binder struct {
	algorithm Algorithm
}

// New returns a binder for the given algorithm.
func New(algorithm Algorithm) *Binder {
	if algorithm == "" {
		algorithm = SHA256
	}
	return &Binder{algorithm: algorithm}
}

// Algorithm reports the configured digest function.
func (b *Binder) Algorithm() Algorithm {
	if b == nil || b.algorithm == "" {
		return SHA256
	}
	return b.algorithm
}

func (b *Binder) newHash() hash.Hash {
	if b.Algorithm() == Keccak256 {
		return sha3.NewLegacyKeccak256()
	}
	return sha256.New()
}

// Bind hashes subjectID || lower(action) || fingerprint and returns lowercase hex.
func (b *Binder) Bind(subjectID, action, fingerprint string) string {
	h := b.newHash()
	h.Write([]byte(subjectID))
	h.Write([]byte(strings.ToLower(action)))
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the digest from the expected fields and requires it and all
// three stored fields to match. A mismatch is an answer, not an error.
func (b *Binder) Verify(record Fields, subjectID, action, fingerprint string) bool {
	expected := b.Bind(subjectID, action, fingerprint)
	digestOK := subtle.ConstantTimeCompare([]byte(expected), []byte(record.Digest)) == 1
	return digestOK &&
		record.SubjectID == subjectID &&
		record.Action == strings.ToLower(action) &&
		record.CallerFingerprint == fingerprint
}

// ValidateDigest requires exactly 64 lowercase hex characters. Malformed
// digests are rejected, never truncated or padded.
func ValidateDigest(digest string) error {
	if !digestPattern.MatchString(digest) {
		return dErrors.New(dErrors.CodeValidation, "digest must be a 64-character lowercase hexadecimal string")
	}
	return nil
}
