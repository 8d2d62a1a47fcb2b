package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

var separatorReplacer = strings.NewReplacer(":", "", "-", "", " ", "", "\t", "")

var errMalformedFingerprint = errors.New("fingerprint must be 64 hexadecimal characters")

// Normalize strips separators and lower-cases a textual SHA-256 fingerprint so
// that "AB:12:..." and "ab12..." compare equal.
func Normalize(fp string) (string, error) {
	out := strings.ToLower(separatorReplacer.Replace(strings.TrimSpace(fp)))
	if !fingerprintPattern.MatchString(out) {
		return "", errMalformedFingerprint
	}
	return out, nil
}

// FromDER returns the canonical fingerprint of a DER-encoded certificate.
func FromDER(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// DecodeCertificateHeader turns a forwarded certificate back into DER bytes.
// nginx forwards $ssl_client_escaped_cert as URL-escaped PEM; other proxies send
// bare base64 DER. Both are accepted.
func DecodeCertificateHeader(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("empty certificate header")
	}
	if strings.Contains(value, "%") {
		unescaped, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		value = unescaped
	}
	if strings.Contains(value, "-----BEGIN") {
		// Some proxies fold PEM newlines into spaces; restore them before decoding.
		block, _ := pem.Decode([]byte(unfoldPEM(value)))
		if block == nil || block.Type != "CERTIFICATE" {
			return nil, errors.New("certificate header is not a PEM certificate")
		}
		return block.Bytes, nil
	}
	compact := strings.Join(strings.Fields(value), "")
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, err
	}
	if len(der) == 0 {
		return nil, errors.New("empty certificate body")
	}
	return der, nil
}

func unfoldPEM(s string) string {
	const begin, end = "-----BEGIN CERTIFICATE-----", "-----END CERTIFICATE-----"
	start := strings.Index(s, begin)
	stop := strings.Index(s, end)
	if start < 0 || stop < 0 || stop < start {
		return s
	}
	body := strings.Join(strings.Fields(s[start+len(begin):stop]), "\n")
	return begin + "\n" + body + "\n" + end + "\n"
}
