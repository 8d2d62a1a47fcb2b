package hashbind

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	dErrors "certtrail/pkg/domain-errors"
)

const (
	subject = "123e4567-e89b-12d3-a456-426614174000"
)

var fingerprint = strings.Repeat("ab12", 16)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestBind(t *testing.T) {
	b := New(SHA256)

	t.Run("equals sha256 of the literal concatenation", func(t *testing.T) {
		want := sha256Hex(subject + "create" + fingerprint)
		assert.Equal(t, want, b.Bind(subject, "create", fingerprint))
	})

	t.Run("action is lower-cased before hashing", func(t *testing.T) {
		assert.Equal(t, b.Bind(subject, "create", fingerprint), b.Bind(subject, "CREATE", fingerprint))
	})

	t.Run("deterministic", func(t *testing.T) {
		first := b.Bind(subject, "update", fingerprint)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, b.Bind(subject, "update", fingerprint))
		}
	})

	t.Run("any input change changes the digest", func(t *testing.T) {
		base := b.Bind(subject, "update", fingerprint)
		assert.NotEqual(t, base, b.Bind("123e4567-e89b-12d3-a456-426614174001", "update", fingerprint))
		assert.NotEqual(t, base, b.Bind(subject, "delete", fingerprint))
		assert.NotEqual(t, base, b.Bind(subject, "update", strings.Repeat("cd34", 16)))
	})

	t.Run("zero value binder uses sha256", func(t *testing.T) {
		var zero Binder
		assert.Equal(t, b.Bind(subject, "create", fingerprint), zero.Bind(subject, "create", fingerprint))
	})

	t.Run("keccak differs and is still 64 hex", func(t *testing.T) {
		k := New(Keccak256)
		h := sha3.NewLegacyKeccak256()
		h.Write([]byte(subject + "create" + fingerprint))
		got := k.Bind(subject, "create", fingerprint)

		assert.Equal(t, hex.EncodeToString(h.Sum(nil)), got)
		assert.NotEqual(t, b.Bind(subject, "create", fingerprint), got)
		assert.NoError(t, ValidateDigest(got))
	})
}

func TestVerify(t *testing.T) {
	b := New(SHA256)
	record := Fields{
		SubjectID:         subject,
		Action:            "update",
		CallerFingerprint: fingerprint,
		Digest:            b.Bind(subject, "update", fingerprint),
	}

	t.Run("round trip", func(t *testing.T) {
		assert.True(t, b.Verify(record, subject, "update", fingerprint))
		assert.True(t, b.Verify(record, subject, "UPDATE", fingerprint))
	})

	t.Run("tampering with any field fails", func(t *testing.T) {
		assert.False(t, b.Verify(record, "other", "update", fingerprint))
		assert.False(t, b.Verify(record, subject, "delete", fingerprint))
		assert.False(t, b.Verify(record, subject, "update", strings.Repeat("00", 32)))
	})

	t.Run("stored field drift with intact digest fails", func(t *testing.T) {
		drifted := record
		drifted.SubjectID = "someone-else"
		assert.False(t, b.Verify(drifted, subject, "update", fingerprint))
	})

	t.Run("stored digest drift fails", func(t *testing.T) {
		drifted := record
		drifted.Digest = strings.Repeat("0", 64)
		assert.False(t, b.Verify(drifted, subject, "update", fingerprint))
	})
}

func TestValidateDigest(t *testing.T) {
	require.NoError(t, ValidateDigest(sha256Hex("x")))

	for _, bad := range []string{
		"",
		strings.Repeat("a", 63),
		strings.Repeat("a", 65),
		strings.ToUpper(sha256Hex("x")),
		strings.Repeat("g", 64),
	} {
		err := ValidateDigest(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), bad)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, a)

	a, err = ParseAlgorithm("KECCAK256")
	require.NoError(t, err)
	assert.Equal(t, Keccak256, a)

	_, err = ParseAlgorithm("md5")
	assert.Error(t, err)
}
