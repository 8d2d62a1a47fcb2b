package httptransport

import (
	"encoding/json"
	"time"

	"certtrail/internal/authz"
	"certtrail/internal/engine"
	"certtrail/internal/identity"
	"certtrail/internal/trail"
)

// SuccessResponse wraps every successful body.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type CreateLogRequest struct {
	UUID   string          `json:"uuid"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type VerifyLogRequest struct {
	UUID   string `json:"uuid"`
	Action string `json:"action"`
}

type RegisterServiceRequest struct {
	ServiceID string `json:"serviceId"`
}

type LogResponse struct {
	ID              string          `json:"id"`
	UUID            string          `json:"uuid"`
	Action          string          `json:"action"`
	UserFingerprint string          `json:"userFingerprint"`
	Hash            string          `json:"hash"`
	ServiceID       string          `json:"serviceId"`
	CreatedAt       time.Time       `json:"createdAt"`
	Data            json.RawMessage `json:"data,omitempty"`
}

type VerifyResponse struct {
	Verified        bool   `json:"verified"`
	Hash            string `json:"hash"`
	UUID            string `json:"uuid"`
	Action          string `json:"action"`
	UserFingerprint string `json:"userFingerprint"`
}

type LogListResponse struct {
	Logs   []LogResponse `json:"logs"`
	Count  int           `json:"count"`
	Total  int           `json:"total,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}

type ServiceResponse struct {
	ServiceID    string    `json:"serviceId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type CertificateResponse struct {
	Subject       identity.DistinguishedName `json:"subject"`
	Issuer        identity.DistinguishedName `json:"issuer"`
	ValidFrom     *time.Time                 `json:"validFrom"`
	ValidTo       *time.Time                 `json:"validTo"`
	WindowChecked bool                       `json:"windowChecked"`
	SerialNumber  string                     `json:"serialNumber,omitempty"`
	Fingerprint   string                     `json:"fingerprint"`
}

type CertificateInfoResponse struct {
	CertificateMode string              `json:"certificateMode"`
	Certificate     CertificateResponse `json:"certificate"`
}

func toLogResponse(rec trail.Record) LogResponse {
	return LogResponse{
		ID:              rec.ID.String(),
		UUID:            rec.SubjectID,
		Action:          string(rec.Action),
		UserFingerprint: rec.CallerFingerprint,
		Hash:            rec.Digest,
		ServiceID:       rec.AuthorID,
		CreatedAt:       rec.CreatedAt,
		Data:            rec.Payload,
	}
}

func toLogList(records []trail.Record) LogListResponse {
	logs := make([]LogResponse, 0, len(records))
	for _, rec := range records {
		logs = append(logs, toLogResponse(rec))
	}
	return LogListResponse{Logs: logs, Count: len(logs)}
}

func toPagedLogList(page *engine.ListResult) LogListResponse {
	resp := toLogList(page.Records)
	resp.Total = page.Total
	resp.Limit = page.Limit
	resp.Offset = page.Offset
	return resp
}

func toServiceResponse(c authz.RegisteredCaller) ServiceResponse {
	return ServiceResponse{ServiceID: c.ID, RegisteredAt: c.RegisteredAt}
}

func toCertificateInfo(id *identity.ClientIdentity) CertificateInfoResponse {
	cert := CertificateResponse{
		Subject:       id.Subject,
		Issuer:        id.Issuer,
		WindowChecked: id.WindowChecked,
		SerialNumber:  id.SerialNumber,
		Fingerprint:   id.Fingerprint,
	}
	if !id.ValidFrom.IsZero() {
		from := id.ValidFrom
		cert.ValidFrom = &from
	}
	if !id.ValidTo.IsZero() {
		to := id.ValidTo
		cert.ValidTo = &to
	}
	return CertificateInfoResponse{CertificateMode: string(id.Mode), Certificate: cert}
}
