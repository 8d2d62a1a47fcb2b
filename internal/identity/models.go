package identity

import (
	"strings"
	"time"
)

// Mode names the strategy that produced an identity. It is carried for
// observability only and never influences authorization.
type Mode string

const (
	ModeDirect  Mode = "direct"
	ModeProxied Mode = "proxied"
)

// ParseMode accepts the configuration spellings of the two strategies.
// "nginx" and "proxy" are accepted for the proxied strategy.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return ModeDirect, true
	case "proxied", "proxy", "nginx", "":
		return ModeProxied, true
	}
	return "", false
}

// DistinguishedName holds the informational attributes of a subject or issuer.
type DistinguishedName struct {
	CommonName         string `json:"CN,omitempty"`
	Organization       string `json:"O,omitempty"`
	OrganizationalUnit string `json:"OU,omitempty"`
	Locality           string `json:"L,omitempty"`
	Province           string `json:"ST,omitempty"`
	Country            string `json:"C,omitempty"`
	Raw                string `json:"raw,omitempty"`
}

// ClientIdentity is derived per request and never persisted as-is.
type ClientIdentity struct {
	Fingerprint  string
	ValidFrom    time.Time
	ValidTo      time.Time
	Subject      DistinguishedName
	Issuer       DistinguishedName
	SerialNumber string
	Mode         Mode
	// WindowChecked is false only when a proxy omitted the validity headers and
	// no certificate body was forwarded to read them from. The proxy is then the
	// sole authority on expiry.
	WindowChecked bool
}
