package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorsuscripcion/risk-info-service/internal/common"
	"github.com/motorsuscripcion/risk-info-service/internal/orchestrator"
	"github.com/motorsuscripcion/risk-info-service/internal/repository"
	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSources struct {
	rows []source.Config
	err  error
	key  repository.CaseKey
}

func (s *stubSources) ListSourceConfigs(_ context.Context, key repository.CaseKey) ([]source.Config, error) {
	s.key = key
	return s.rows, s.err
}

type stubOrchestrator struct {
	records []map[string]any
	err     error
	req     orchestrator.Request
	called  bool
}

func (s *stubOrchestrator) Run(_ context.Context, _ []source.Config, req orchestrator.Request) ([]map[string]any, error) {
	s.called = true
	s.req = req
	return s.records, s.err
}

func postRiskInfo(t *testing.T, svc *Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/obtener_info_riesgos",
		bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	return w
}

const validBody = `{
	"codigo_producto": 11,
	"codigo_subproducto": 22,
	"codigo_movimiento": "EMI",
	"codigo_modificacion": "",
	"consecutivo": 555
}`

func TestRiskInfoOK(t *testing.T) {
	sources := &stubSources{rows: []source.Config{{CaseType: "INDIVIDUAL", SourceName: "A"}}}
	orch := &stubOrchestrator{records: []map[string]any{{"NOMBRE": "ANA"}}}
	svc := NewService(sources, orch, nil, nil)

	w := postRiskInfo(t, svc, validBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp RiskInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Riesgos, 1)
	assert.Equal(t, "ANA", resp.Riesgos[0]["NOMBRE"])
	assert.Empty(t, resp.Mensaje)

	assert.Equal(t, int64(555), orch.req.Consecutivo)
	assert.Equal(t, repository.CaseKey{Product: 11, Subproduct: 22, Movement: "EMI"}, sources.key)
}

func TestRiskInfoEmptyResultCarriesMessage(t *testing.T) {
	sources := &stubSources{rows: []source.Config{{CaseType: "COLECTIVO", SourceName: "A"}}}
	orch := &stubOrchestrator{records: []map[string]any{}}
	svc := NewService(sources, orch, nil, nil)

	w := postRiskInfo(t, svc, validBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp RiskInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Riesgos)
	assert.Empty(t, resp.Riesgos)
	assert.NotEmpty(t, resp.Mensaje)
}

func TestRiskInfoNoConfigIs404(t *testing.T) {
	orch := &stubOrchestrator{}
	svc := NewService(&stubSources{}, orch, nil, nil)

	w := postRiskInfo(t, svc, validBody)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, orch.called)
}

func TestRiskInfoInvalidCaseTypeIs400(t *testing.T) {
	sources := &stubSources{rows: []source.Config{{CaseType: "MASIVO"}}}
	orch := &stubOrchestrator{err: common.NewAppError("INVALID_CASE_TYPE", "bad", common.ErrInvalidInput)}
	svc := NewService(sources, orch, nil, nil)

	w := postRiskInfo(t, svc, validBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRiskInfoOrchestrationFailureIs500(t *testing.T) {
	sources := &stubSources{rows: []source.Config{{CaseType: "INDIVIDUAL"}}}
	orch := &stubOrchestrator{err: errors.New("db down")}
	svc := NewService(sources, orch, nil, nil)

	w := postRiskInfo(t, svc, validBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRiskInfoBadBodyIs400(t *testing.T) {
	svc := NewService(&stubSources{}, &stubOrchestrator{}, nil, nil)
	w := postRiskInfo(t, svc, `{"codigo_producto": "no"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := NewService(&stubSources{}, &stubOrchestrator{},
			func(context.Context) error { return nil }, nil)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unhealthy", func(t *testing.T) {
		svc := NewService(&stubSources{}, &stubOrchestrator{},
			func(context.Context) error { return errors.New("no db") }, nil)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
