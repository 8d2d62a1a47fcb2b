package identity

import (
	"crypto/x509"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/requestcontext"
)

// Headers set by the terminating proxy (nginx naming).
const (
	HeaderClientVerify      = "X-SSL-Client-Verify"
	HeaderClientFingerprint = "X-SSL-Client-Fingerprint"
	HeaderClientCert        = "X-SSL-Client-Cert"
	HeaderClientSubject     = "X-SSL-Client-Subject"
	HeaderClientIssuer      = "X-SSL-Client-Issuer"
	HeaderClientNotBefore   = "X-SSL-Client-Not-Before"
	HeaderClientNotAfter    = "X-SSL-Client-Not-After"
	HeaderClientSerial      = "X-SSL-Client-Serial"

	verifySuccess = "SUCCESS"
)

// proxyTimeLayouts covers nginx ($ssl_client_v_start), RFC 3339 and HTTP dates.
var proxyTimeLayouts = []string{
	"Jan _2 15:04:05 2006 MST",
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
}

// ProxiedExtractor trusts headers from an upstream proxy that already verified
// the handshake. The proxy is a trust boundary: when it omits the validity
// headers and does not forward the certificate, no expiry check is possible here
// and the returned identity reports WindowChecked=false.
type ProxiedExtractor struct {
	logger *slog.Logger
}

func (e *ProxiedExtractor) Mode() Mode { return ModeProxied }

func (e *ProxiedExtractor) Extract(r *http.Request) (*ClientIdentity, error) {
	h := r.Header
	status := strings.TrimSpace(h.Get(HeaderClientVerify))
	if status != verifySuccess {
		shown := status
		if shown == "" {
			shown = "NONE"
		}
		return nil, dErrors.New(dErrors.CodeProxyVerificationFailed, "client certificate verification failed").
			WithDetails("proxy verification status: " + shown)
	}

	rawFingerprint := h.Get(HeaderClientFingerprint)
	rawCert := h.Get(HeaderClientCert)
	if strings.TrimSpace(rawFingerprint) == "" && strings.TrimSpace(rawCert) == "" {
		return nil, dErrors.New(dErrors.CodeFingerprintExtractionFailed, "client certificate information missing")
	}

	var cert *x509.Certificate
	var certFingerprint string
	if strings.TrimSpace(rawCert) != "" {
		der, err := DecodeCertificateHeader(rawCert)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeFingerprintExtractionFailed, "unable to decode forwarded certificate")
		}
		cert, err = x509.ParseCertificate(der)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeFingerprintExtractionFailed, "unable to parse forwarded certificate")
		}
		certFingerprint = FromDER(der)
	}

	fingerprint := certFingerprint
	if strings.TrimSpace(rawFingerprint) != "" {
		normalized, err := Normalize(rawFingerprint)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeFingerprintExtractionFailed, "unable to extract certificate fingerprint")
		}
		if certFingerprint != "" && normalized != certFingerprint {
			return nil, dErrors.New(dErrors.CodeUntrustedCertificate, "forwarded fingerprint does not match forwarded certificate")
		}
		fingerprint = normalized
	}

	validFrom, err := headerTime(h, HeaderClientNotBefore)
	if err != nil {
		return nil, err
	}
	validTo, err := headerTime(h, HeaderClientNotAfter)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		if validFrom.IsZero() {
			validFrom = cert.NotBefore
		}
		if validTo.IsZero() {
			validTo = cert.NotAfter
		}
	}

	ctx := r.Context()
	windowChecked := !validFrom.IsZero() && !validTo.IsZero()
	if !windowChecked {
		e.logger.WarnContext(ctx, "proxy omitted certificate validity window; expiry enforcement delegated to proxy",
			"fingerprint", fingerprint,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if err := checkWindow(requestcontext.Now(ctx), validFrom, validTo); err != nil {
		return nil, err
	}

	id := &ClientIdentity{
		Fingerprint:   fingerprint,
		ValidFrom:     validFrom,
		ValidTo:       validTo,
		SerialNumber:  strings.ToLower(strings.TrimSpace(h.Get(HeaderClientSerial))),
		Mode:          ModeProxied,
		WindowChecked: windowChecked,
	}
	if subject := h.Get(HeaderClientSubject); subject != "" {
		id.Subject = parseDN(subject)
	} else if cert != nil {
		id.Subject = fromPKIXName(cert.Subject)
	}
	if issuer := h.Get(HeaderClientIssuer); issuer != "" {
		id.Issuer = parseDN(issuer)
	} else if cert != nil {
		id.Issuer = fromPKIXName(cert.Issuer)
	}
	if id.SerialNumber == "" && cert != nil && cert.SerialNumber != nil {
		id.SerialNumber = cert.SerialNumber.Text(16)
	}
	return id, nil
}

func headerTime(h http.Header, name string) (time.Time, error) {
	raw := strings.TrimSpace(h.Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range proxyTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, dErrors.New(dErrors.CodeUntrustedCertificate, "unreadable certificate validity header").
		WithDetails(name + ": " + raw)
}
