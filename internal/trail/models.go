// Package trail defines the append-only audit record and the contract every
// trail backend implements.
package trail

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"certtrail/internal/hashbind"
	dErrors "certtrail/pkg/domain-errors"
)

// Action is the closed set of operations a record can describe.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction lower-cases s and accepts only the known actions.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "action must be one of: create, update, delete")
}

func (a Action) String() string { return string(a) }

// Record is one immutable entry of the trail.
type Record struct {
	ID                uuid.UUID
	SubjectID         string
	Action            Action
	CallerFingerprint string
	Digest            string
	Payload           json.RawMessage
	AuthorID          string
	CreatedAt         time.Time
}

// Fields projects the record onto what the binder verifies.
func (r Record) Fields() hashbind.Fields {
	return hashbind.Fields{
		SubjectID:         r.SubjectID,
		Action:            string(r.Action),
		CallerFingerprint: r.CallerFingerprint,
		Digest:            r.Digest,
	}
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	if r.Payload != nil {
		r.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return r
}

const maxIdentifierLength = 128

// ValidateRecord checks the shapes a backend relies on before any storage is
// touched. Format rules of the inbound API (UUID v4 subjects) are enforced by
// the engine; the store only refuses values it cannot index safely.
func ValidateRecord(r Record) error {
	if err := validateIdentifier("subjectId", r.SubjectID); err != nil {
		return err
	}
	if _, err := ParseAction(string(r.Action)); err != nil {
		return err
	}
	if r.Action != Action(strings.ToLower(string(r.Action))) {
		return dErrors.New(dErrors.CodeValidation, "action must be stored lower-cased")
	}
	if err := validateIdentifier("callerFingerprint", r.CallerFingerprint); err != nil {
		return err
	}
	if err := validateIdentifier("authorId", r.AuthorID); err != nil {
		return err
	}
	if err := hashbind.ValidateDigest(r.Digest); err != nil {
		return err
	}
	if r.ID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "record id is required")
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return dErrors.New(dErrors.CodeValidation, "payload must be valid JSON")
	}
	return nil
}

func validateIdentifier(field, v string) error {
	if v == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(v) > maxIdentifierLength {
		return dErrors.New(dErrors.CodeValidation, field+" is too long")
	}
	for _, r := range v {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return dErrors.New(dErrors.CodeValidation, field+" contains invalid characters")
		}
	}
	return nil
}

// ValidateSubjectID enforces the inbound subject format: a canonical UUID v4.
func ValidateSubjectID(s string) error {
	id, err := uuid.Parse(s)
	if err != nil || len(s) != 36 {
		return dErrors.New(dErrors.CodeValidation, "uuid must be a valid UUID format")
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return dErrors.New(dErrors.CodeValidation, "uuid must be a version 4 UUID")
	}
	return nil
}
