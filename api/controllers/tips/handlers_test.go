package tips

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaltips "github.com/angelmondragon/tipledger-backend/internal/tips"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

type stubService struct {
	created  bool
	input    internaltips.CreateTipIntentInput
	assigned uuid.UUID
}

func (s *stubService) Create(_ context.Context, input internaltips.CreateTipIntentInput) (*internaltips.TipIntentView, error) {
	s.input = input
	return &internaltips.TipIntentView{ID: uuid.New(), Status: enums.TipIntentStatusPending, Created: s.created}, nil
}

func (s *stubService) Get(_ context.Context, id uuid.UUID) (*internaltips.TipIntentView, error) {
	return &internaltips.TipIntentView{ID: id}, nil
}

func (s *stubService) Confirm(_ context.Context, id uuid.UUID) (*internaltips.TipIntentView, error) {
	return &internaltips.TipIntentView{ID: id, Status: enums.TipIntentStatusConfirmed}, nil
}

func (s *stubService) Reverse(_ context.Context, id uuid.UUID) (*internaltips.TipIntentView, error) {
	return &internaltips.TipIntentView{ID: id, Status: enums.TipIntentStatusReversed}, nil
}

func (s *stubService) AssignEmployee(_ context.Context, id, employeeID uuid.UUID) (*internaltips.TipIntentView, error) {
	s.assigned = employeeID
	return &internaltips.TipIntentView{ID: id, EmployeeID: &employeeID}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "tips-controller-test", Output: &bytes.Buffer{}})
}

func withTipID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(tipIntentIDParam, id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCreateStatusAndKeyFallback(t *testing.T) {
	merchantID := uuid.New()
	body := `{"merchantId":"` + merchantID.String() + `","tableCode":"T-1","amount":12.5}`

	tests := []struct {
		name    string
		created bool
		status  int
	}{
		{name: "fresh insert", created: true, status: http.StatusCreated},
		{name: "replay", created: false, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{created: tt.created}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tips", strings.NewReader(body))
			req.Header.Set("Idempotency-Key", "header-key")
			rec := httptest.NewRecorder()

			Create(svc, testLogger()).ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "header-key", svc.input.IdempotencyKey)
			assert.Equal(t, merchantID, svc.input.MerchantID)
			assert.Equal(t, "12.5", svc.input.Amount.String())
			assert.Nil(t, svc.input.EmployeeID)
		})
	}
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing merchant", body: `{"tableCode":"T-1","amount":"1"}`},
		{name: "bad merchant", body: `{"merchantId":"abc","tableCode":"T-1","amount":"1"}`},
		{name: "bad employee", body: `{"merchantId":"` + uuid.NewString() + `","tableCode":"T-1","amount":"1","employeeId":"x"}`},
		{name: "not json", body: `amount=1`},
		{name: "hint too long", body: `{"merchantId":"` + uuid.NewString() + `","tableCode":"T-1","amount":"1","employeeHint":"` + strings.Repeat("h", 256) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			rec := httptest.NewRecorder()
			Create(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tips", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestCreateAcceptsHintUpToColumnLimit(t *testing.T) {
	hint := strings.Repeat("h", 255)
	body := `{"merchantId":"` + uuid.NewString() + `","tableCode":"T-1","amount":"1","employeeHint":"` + hint + `"}`
	svc := &stubService{created: true}
	rec := httptest.NewRecorder()

	Create(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tips", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.input.EmployeeHint)
	assert.Equal(t, hint, *svc.input.EmployeeHint)
}

func TestAssignParsesEmployee(t *testing.T) {
	svc := &stubService{}
	employeeID := uuid.New()
	tipID := uuid.NewString()
	req := withTipID(httptest.NewRequest(http.MethodPost, "/api/v1/tips/"+tipID+"/assign", strings.NewReader(`{"employeeId":"`+employeeID.String()+`"}`)), tipID)
	rec := httptest.NewRecorder()

	Assign(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, employeeID, svc.assigned)
}

func TestConfirmRequiresValidID(t *testing.T) {
	rec := httptest.NewRecorder()
	Confirm(&stubService{}, testLogger()).ServeHTTP(rec, withTipID(httptest.NewRequest(http.MethodPost, "/api/v1/tips/x/confirm", nil), "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := uuid.NewString()
	rec = httptest.NewRecorder()
	Confirm(&stubService{}, testLogger()).ServeHTTP(rec, withTipID(httptest.NewRequest(http.MethodPost, "/api/v1/tips/"+id+"/confirm", nil), id))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CONFIRMED"`)
}
