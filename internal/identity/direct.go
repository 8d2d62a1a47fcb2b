package identity

import (
	"net/http"

	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/requestcontext"
)

// DirectExtractor reads the peer certificate of a TLS connection terminated by
// this process.
type DirectExtractor struct {
	development bool
}

func (e *DirectExtractor) Mode() Mode { return ModeDirect }

func (e *DirectExtractor) Extract(r *http.Request) (*ClientIdentity, error) {
	if r.TLS == nil || !r.TLS.HandshakeComplete {
		return nil, dErrors.New(dErrors.CodeTransportRequired, "TLS connection required")
	}
	if len(r.TLS.PeerCertificates) == 0 || r.TLS.PeerCertificates[0] == nil || len(r.TLS.PeerCertificates[0].Raw) == 0 {
		return nil, dErrors.New(dErrors.CodeCertificateRequired, "client certificate required")
	}
	cert := r.TLS.PeerCertificates[0]

	if !e.development && isSelfSigned(cert) {
		return nil, dErrors.New(dErrors.CodeUntrustedCertificate, "self-signed certificates not allowed in production")
	}

	now := requestcontext.Now(r.Context())
	if err := checkWindow(now, cert.NotBefore, cert.NotAfter); err != nil {
		return nil, err
	}

	serial := ""
	if cert.SerialNumber != nil {
		serial = cert.SerialNumber.Text(16)
	}

	return &ClientIdentity{
		Fingerprint:   FromDER(cert.Raw),
		ValidFrom:     cert.NotBefore,
		ValidTo:       cert.NotAfter,
		Subject:       fromPKIXName(cert.Subject),
		Issuer:        fromPKIXName(cert.Issuer),
		SerialNumber:  serial,
		Mode:          ModeDirect,
		WindowChecked: true,
	}, nil
}
