package httptransport_test

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks TrailService

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certtrail/internal/authz"
	"certtrail/internal/engine"
	"certtrail/internal/trail"
	httptransport "certtrail/internal/transport/http"
	"certtrail/internal/transport/http/mocks"
	dErrors "certtrail/pkg/domain-errors"
	"certtrail/pkg/testutil"
)

const (
	testServiceID = "svc-a"
	testSubjectID = "123e4567-e89b-42d3-a456-426614174000"
)

var testFingerprint = strings.Repeat("ab", 32)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

type HandlerSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	svc    *mocks.MockTrailService
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.svc = mocks.NewMockTrailService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := httptransport.NewHandler(s.svc, logger, httptransport.ServiceCaller(testServiceID))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithIdentity(req, testFingerprint))
}

func sampleRecord() *trail.Record {
	return &trail.Record{
		ID:                uuid.MustParse("7f1d2c3b-4a5e-4f60-8a7b-9c0d1e2f3a4b"),
		SubjectID:         testSubjectID,
		Action:            trail.ActionCreate,
		CallerFingerprint: testFingerprint,
		Digest:            strings.Repeat("0f", 32),
		Payload:           json.RawMessage(`{"floor":2}`),
		AuthorID:          testServiceID,
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (s *HandlerSuite) TestCreateLog() {
	s.Run("acts as the configured service and returns 201", func() {
		s.svc.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p engine.Principal, req engine.RegisterRequest) (*trail.Record, error) {
				s.Equal(testServiceID, p.CallerID)
				s.Require().NotNil(p.Identity)
				s.Equal(testFingerprint, p.Identity.Fingerprint)
				s.Equal(testSubjectID, req.SubjectID)
				s.Equal("Create", req.Action)
				s.JSONEq(`{"floor":2}`, string(req.Payload))
				return sampleRecord(), nil
			})

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/logs", map[string]any{
			"uuid": testSubjectID, "action": "Create", "data": map[string]int{"floor": 2},
		}))

		s.Equal(http.StatusCreated, rr.Code)
		body := testutil.UnmarshalResponse[envelope[httptransport.LogResponse]](s.T(), rr)
		s.True(body.Success)
		s.Equal(testSubjectID, body.Data.UUID)
		s.Equal("create", body.Data.Action)
		s.Equal(testFingerprint, body.Data.UserFingerprint)
		s.Equal(strings.Repeat("0f", 32), body.Data.Hash)
		s.Equal(testServiceID, body.Data.ServiceID)
	})

	s.Run("malformed body is a bad request without reaching the service", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/logs", "{not json"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("duplicate digest maps to 409", func() {
		s.svc.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "Log with this hash already exists"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/logs", map[string]string{
			"uuid": testSubjectID, "action": "create",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("unregistered caller maps to 403", func() {
		s.svc.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized caller"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/logs", map[string]string{
			"uuid": testSubjectID, "action": "create",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeUnauthorized))
	})

	s.Run("internal errors hide their message", func() {
		s.svc.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("pool exhausted"), dErrors.CodeInternal, "failed to store record"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/logs", map[string]string{
			"uuid": testSubjectID, "action": "create",
		}))
		s.Equal(http.StatusInternalServerError, rr.Code)
		errResp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal(string(dErrors.CodeInternal), errResp.Error)
		s.Empty(errResp.Description)
	})
}

func (s *HandlerSuite) TestVerifyLog() {
	s.Run("reports a match with the certificate fingerprint", func() {
		s.svc.EXPECT().Verify(gomock.Any(), gomock.Any(), engine.VerifyRequest{SubjectID: testSubjectID, Action: "create"}).
			Return(&engine.VerifyResult{Valid: true, Digest: strings.Repeat("0f", 32)}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/logs/verify", map[string]string{
			"uuid": testSubjectID, "action": "create",
		}))

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[envelope[httptransport.VerifyResponse]](s.T(), rr)
		s.True(body.Data.Verified)
		s.Equal(testFingerprint, body.Data.UserFingerprint)
		s.Equal("Log verified successfully", body.Message)
	})

	s.Run("a mismatch is still a 200 with verified=false", func() {
		s.svc.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&engine.VerifyResult{Valid: false, Digest: strings.Repeat("0f", 32)}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/logs/verify", map[string]string{
			"uuid": testSubjectID, "action": "delete",
		}))

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[envelope[httptransport.VerifyResponse]](s.T(), rr)
		s.False(body.Data.Verified)
	})

	s.Run("unknown record is 404", func() {
		s.svc.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "Log not found"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/logs/verify", map[string]string{
			"uuid": testSubjectID, "action": "create",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestQueries() {
	s.Run("by subject passes the path parameter through", func() {
		s.svc.EXPECT().BySubject(gomock.Any(), gomock.Any(), testSubjectID).Return([]trail.Record{*sampleRecord()}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/logs/uuid/"+testSubjectID))

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[envelope[httptransport.LogListResponse]](s.T(), rr)
		s.Equal(1, body.Data.Count)
		s.Len(body.Data.Logs, 1)
	})

	s.Run("by action with no matches is an empty list", func() {
		s.svc.EXPECT().ByAction(gomock.Any(), gomock.Any(), "delete").Return(nil, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/logs/action/delete"))

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[envelope[httptransport.LogListResponse]](s.T(), rr)
		s.NotNil(body.Data.Logs)
		s.Empty(body.Data.Logs)
	})

	s.Run("by fingerprint", func() {
		s.svc.EXPECT().ByFingerprint(gomock.Any(), gomock.Any(), testFingerprint).Return([]trail.Record{*sampleRecord()}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/logs/fingerprint/"+testFingerprint))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("list forwards paging parameters", func() {
		s.svc.EXPECT().All(gomock.Any(), gomock.Any(), 10, 20).
			Return(&engine.ListResult{Records: []trail.Record{}, Total: 25, Limit: 10, Offset: 20}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/logs?limit=10&offset=20"))

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[envelope[httptransport.LogListResponse]](s.T(), rr)
		s.Equal(25, body.Data.Total)
		s.Equal(20, body.Data.Offset)
	})

	s.Run("non-numeric limit is rejected", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/logs?limit=ten"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestServices() {
	s.Run("registration uses the certificate as requester", func() {
		s.svc.EXPECT().RegisterCaller(gomock.Any(), gomock.Any(), "svc-b").
			DoAndReturn(func(_ context.Context, p engine.Principal, id string) (*authz.RegisteredCaller, error) {
				s.Equal(testFingerprint, p.CallerID)
				return &authz.RegisteredCaller{ID: id, RegisteredAt: time.Now()}, nil
			})

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/services", map[string]string{"serviceId": "svc-b"}))

		s.Equal(http.StatusCreated, rr.Code)
		body := testutil.UnmarshalResponse[envelope[httptransport.ServiceResponse]](s.T(), rr)
		s.Equal("svc-b", body.Data.ServiceID)
	})

	s.Run("listing", func() {
		s.svc.EXPECT().ListCallers(gomock.Any(), gomock.Any()).
			Return([]authz.RegisteredCaller{{ID: "svc-a"}, {ID: "svc-b"}}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/services"))

		s.Equal(http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[envelope[[]httptransport.ServiceResponse]](s.T(), rr)
		s.Len(body.Data, 2)
	})
}

func (s *HandlerSuite) TestCertificateInfo() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/certificates/info"))

	s.Equal(http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[envelope[httptransport.CertificateInfoResponse]](s.T(), rr)
	s.Equal("proxied", body.Data.CertificateMode)
	s.Equal(testFingerprint, body.Data.Certificate.Fingerprint)
	s.Nil(body.Data.Certificate.ValidFrom)
}
