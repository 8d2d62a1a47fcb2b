package identity

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certtrail/pkg/domain-errors"
)

func TestDirectExtractor(t *testing.T) {
	ca := newTestCA(t)
	prod := &DirectExtractor{}

	t.Run("plain connection is rejected", func(t *testing.T) {
		_, err := prod.Extract(newRequest())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTransportRequired))
	})

	t.Run("incomplete handshake is rejected", func(t *testing.T) {
		req := newRequest()
		req.TLS = &tls.ConnectionState{}
		_, err := prod.Extract(req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTransportRequired))
	})

	t.Run("missing peer certificate", func(t *testing.T) {
		_, err := prod.Extract(withPeer(newRequest()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCertificateRequired))
	})

	t.Run("fingerprint is sha256 of DER", func(t *testing.T) {
		cert := issue(t, ca, "alice", fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))
		id, err := prod.Extract(withPeer(newRequest(), cert))
		require.NoError(t, err)

		assert.Equal(t, FromDER(cert.Raw), id.Fingerprint)
		assert.Equal(t, ModeDirect, id.Mode)
		assert.Equal(t, "alice", id.Subject.CommonName)
		assert.Equal(t, "certtrail test CA", id.Issuer.CommonName)
		assert.True(t, id.WindowChecked)
		assert.NotEmpty(t, id.SerialNumber)
	})

	t.Run("expired one second ago is rejected", func(t *testing.T) {
		cert := issue(t, ca, "bob", fixedNow.Add(-time.Hour), fixedNow.Add(-time.Second))
		_, err := prod.Extract(withPeer(newRequest(), cert))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpiredCertificate))
	})

	t.Run("expiring in one second is accepted", func(t *testing.T) {
		cert := issue(t, ca, "bob", fixedNow.Add(-time.Hour), fixedNow.Add(time.Second))
		_, err := prod.Extract(withPeer(newRequest(), cert))
		assert.NoError(t, err)
	})

	t.Run("validTo equal to now is accepted", func(t *testing.T) {
		cert := issue(t, ca, "bob", fixedNow.Add(-time.Hour), fixedNow)
		_, err := prod.Extract(withPeer(newRequest(), cert))
		assert.NoError(t, err)
	})

	t.Run("not yet valid", func(t *testing.T) {
		cert := issue(t, ca, "carol", fixedNow.Add(time.Minute), fixedNow.Add(time.Hour))
		_, err := prod.Extract(withPeer(newRequest(), cert))
		assert.True(t, dErrors.HasCode(err, dErrors.CodePrematureCertificate))
	})

	t.Run("self-signed rejected outside development", func(t *testing.T) {
		cert := issue(t, nil, "mallory", fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))
		_, err := prod.Extract(withPeer(newRequest(), cert))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUntrustedCertificate))
	})

	t.Run("self-signed accepted in development", func(t *testing.T) {
		dev := &DirectExtractor{development: true}
		cert := issue(t, nil, "dev", fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))
		id, err := dev.Extract(withPeer(newRequest(), cert))
		require.NoError(t, err)
		assert.Equal(t, FromDER(cert.Raw), id.Fingerprint)
	})
}

func TestNewSelectsStrategy(t *testing.T) {
	direct, err := New(ModeDirect)
	require.NoError(t, err)
	assert.IsType(t, &DirectExtractor{}, direct)

	proxied, err := New(ModeProxied)
	require.NoError(t, err)
	assert.IsType(t, &ProxiedExtractor{}, proxied)

	_, err = New(Mode("carrier-pigeon"))
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"direct": ModeDirect, "nginx": ModeProxied, "PROXY": ModeProxied, "": ModeProxied} {
		got, ok := ParseMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseMode("ssh")
	assert.False(t, ok)
}
