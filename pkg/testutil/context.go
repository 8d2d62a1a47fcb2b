package testutil

import (
	"net/http"

	"certtrail/internal/identity"
)

// WithIdentity attaches a proxied client identity with the given fingerprint,
// as the identity middleware would after a successful extraction.
func WithIdentity(req *http.Request, fingerprint string) *http.Request {
	id := &identity.ClientIdentity{
		Fingerprint:   fingerprint,
		Mode:          identity.ModeProxied,
		WindowChecked: true,
	}
	return req.WithContext(identity.WithIdentity(req.Context(), id))
}
