// Package identity derives a verified client identity from a request, either
// from the locally terminated TLS handshake or from headers asserted by a
// terminating reverse proxy. The strategy is chosen once at startup.
package identity

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dErrors "certtrail/pkg/domain-errors"
)

// Extractor produces a verified identity or a typed extraction failure.
// Implementations only read the request.
type Extractor interface {
	Extract(r *http.Request) (*ClientIdentity, error)
	Mode() Mode
}

type options struct {
	development bool
	logger      *slog.Logger
}

// Option configures an extractor.
type Option func(*options)

// WithDevelopment relaxes the self-signed certificate rule in direct mode.
func WithDevelopment(dev bool) Option {
	return func(o *options) {
		o.development = dev
	}
}

// WithLogger sets the logger used for trust-boundary warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New selects the extraction strategy for the process.
func New(mode Mode, opts ...Option) (Extractor, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	switch mode {
	case ModeDirect:
		return &DirectExtractor{development: o.development}, nil
	case ModeProxied:
		return &ProxiedExtractor{logger: o.logger}, nil
	default:
		return nil, fmt.Errorf("unknown certificate mode %q", mode)
	}
}

// checkWindow enforces validFrom <= now <= validTo, inclusive at both ends.
func checkWindow(now, validFrom, validTo time.Time) error {
	if !validFrom.IsZero() && now.Before(validFrom) {
		return dErrors.New(dErrors.CodePrematureCertificate, "client certificate is not yet valid").
			WithDetails(
				"validFrom: "+validFrom.UTC().Format(time.RFC3339),
				"currentTime: "+now.UTC().Format(time.RFC3339),
			)
	}
	if !validTo.IsZero() && now.After(validTo) {
		return dErrors.New(dErrors.CodeExpiredCertificate, "client certificate has expired").
			WithDetails(
				"expiredOn: "+validTo.UTC().Format(time.RFC3339),
				"currentTime: "+now.UTC().Format(time.RFC3339),
			)
	}
	return nil
}

func fromPKIXName(name pkix.Name) DistinguishedName {
	return DistinguishedName{
		CommonName:         name.CommonName,
		Organization:       first(name.Organization),
		OrganizationalUnit: first(name.OrganizationalUnit),
		Locality:           first(name.Locality),
		Province:           first(name.Province),
		Country:            first(name.Country),
		Raw:                name.String(),
	}
}

// parseDN reads an RFC 2253 style string such as "CN=svc,O=Acme\, Inc".
// Unknown attributes are kept only in Raw.
func parseDN(raw string) DistinguishedName {
	dn := DistinguishedName{Raw: raw}
	for _, part := range splitUnescaped(raw, ',') {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		value = strings.ReplaceAll(strings.TrimSpace(value), `\,`, ",")
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "CN":
			dn.CommonName = value
		case "O":
			dn.Organization = value
		case "OU":
			dn.OrganizationalUnit = value
		case "L":
			dn.Locality = value
		case "ST":
			dn.Province = value
		case "C":
			dn.Country = value
		}
	}
	return dn
}

func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func isSelfSigned(cert *x509.Certificate) bool {
	if string(cert.RawIssuer) != string(cert.RawSubject) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
