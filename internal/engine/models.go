package engine

import (
	"encoding/json"

	"certtrail/internal/identity"
	"certtrail/internal/trail"
)

// Principal is the authenticated party behind a call. CallerID is what the
// authorization gate checks; Identity is the certificate that authenticated
// the request and supplies the fingerprint bound into digests.
type Principal struct {
	CallerID string
	Identity *identity.ClientIdentity
}

type RegisterRequest struct {
	SubjectID string
	Action    string
	Payload   json.RawMessage
}

type VerifyRequest struct {
	SubjectID string
	Action    string
}

// VerifyResult reports whether the stored record matches the expected triple.
// A mismatch is a result, not an error.
type VerifyResult struct {
	Valid  bool
	Digest string
	Record *trail.Record
}

// ListResult is one page of the full trail.
type ListResult struct {
	Records []trail.Record
	Total   int
	Limit   int
	Offset  int
}

// SweepReport summarizes one integrity sweep.
type SweepReport struct {
	Checked    int
	Mismatches []trail.Record
}
