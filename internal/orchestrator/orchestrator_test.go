package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorsuscripcion/risk-info-service/internal/common"
	"github.com/motorsuscripcion/risk-info-service/internal/repository"
	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

type invocation struct {
	sourceName   string
	placeholders map[string]any
}

// fakeInvoker serves canned responses per source name and snapshots the
// placeholder map at call time.
type fakeInvoker struct {
	mu        sync.Mutex
	responses map[string]any
	errs      map[string]error
	calls     []invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, cfg source.Config, placeholders map[string]any) (any, error) {
	snapshot := make(map[string]any, len(placeholders))
	for k, v := range placeholders {
		snapshot[k] = v
	}
	f.mu.Lock()
	f.calls = append(f.calls, invocation{sourceName: cfg.SourceName, placeholders: snapshot})
	f.mu.Unlock()

	if err, ok := f.errs[cfg.SourceName]; ok {
		return nil, err
	}
	return f.responses[cfg.SourceName], nil
}

func (f *fakeInvoker) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.sourceName == name {
			return true
		}
	}
	return false
}

type fakeDocs struct {
	records    []map[string]any
	prompt     string
	attachment []byte
	called     bool
}

func (f *fakeDocs) ExtractRecords(_ context.Context, prompt string, attachment []byte) []map[string]any {
	f.called = true
	f.prompt = prompt
	f.attachment = attachment
	return f.records
}

type fakeCases struct {
	caseID *int64
	err    error
}

func (f *fakeCases) ResolveCaseID(context.Context, int64, repository.CaseKey) (*int64, error) {
	return f.caseID, f.err
}

type fakeResults struct {
	records []map[string]any
	caseID  int64
	calls   int
	err     error
}

func (f *fakeResults) SaveRiskResults(_ context.Context, records []map[string]any, caseID int64, _ repository.CaseKey) (int, error) {
	f.calls++
	f.records = records
	f.caseID = caseID
	if f.err != nil {
		return 0, f.err
	}
	return len(records), nil
}

func ptrInt64(v int64) *int64 { return &v }

func testRequest() Request {
	return Request{
		Consecutivo: 555,
		Key:         repository.CaseKey{Product: 1, Subproduct: 2, Movement: "EMI"},
	}
}

func TestRunRejectsInvalidCaseType(t *testing.T) {
	inv := &fakeInvoker{}
	o := New(inv, &fakeDocs{}, &fakeCases{}, &fakeResults{}, nil)

	_, err := o.Run(context.Background(), []source.Config{{CaseType: "MASIVO"}}, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Empty(t, inv.calls)
}

func TestRunNormalizesCaseType(t *testing.T) {
	results := &fakeResults{}
	o := New(&fakeInvoker{responses: map[string]any{}}, &fakeDocs{},
		&fakeCases{caseID: ptrInt64(1)}, results, nil)

	got, err := o.Run(context.Background(),
		[]source.Config{{CaseType: "  individual ", SourceName: "A"}}, testRequest())
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestIndividualIsolatesGroupFailures(t *testing.T) {
	rows := []source.Config{
		{CaseType: "INDIVIDUAL", SourceName: "G1", VariableName: "NOMBRE", Extraction: `result["nombre"]`},
		{CaseType: "INDIVIDUAL", SourceName: "G2", VariableName: "PLACA", Extraction: `result["placa"]`},
		{CaseType: "INDIVIDUAL", SourceName: "G3", VariableName: "TIPO_DOCUMENTO", Extraction: `result["tipo"]`},
		{CaseType: "INDIVIDUAL", SourceName: "G3", VariableName: "NUMERO_DOCUMENTO", Extraction: `result["numero"]`},
	}
	inv := &fakeInvoker{
		responses: map[string]any{
			"G1": map[string]any{"nombre": "ANA RUIZ"},
			"G3": map[string]any{"tipo": "CC", "numero": "1017"},
		},
		errs: map[string]error{"G2": errors.New("connection refused")},
	}
	results := &fakeResults{}
	o := New(inv, &fakeDocs{}, &fakeCases{caseID: ptrInt64(900)}, results, nil)

	got, err := o.Run(context.Background(), rows, testRequest())
	require.NoError(t, err)
	require.Len(t, got, 1)

	record := got[0]
	assert.Equal(t, "ANA RUIZ", record["NOMBRE"])
	assert.Equal(t, "CC", record["TIPO_DOCUMENTO"])
	assert.Equal(t, "1017", record["NUMERO_DOCUMENTO"])
	assert.Contains(t, record, "PLACA")
	assert.Nil(t, record["PLACA"])

	assert.Equal(t, 1, results.calls)
	assert.Equal(t, int64(900), results.caseID)
	assert.Equal(t, got, results.records)
}

func TestIndividualSeedsConsecutivoPlaceholder(t *testing.T) {
	rows := []source.Config{
		{CaseType: "INDIVIDUAL", SourceName: "G1", VariableName: "V", Extraction: `result`},
	}
	inv := &fakeInvoker{responses: map[string]any{"G1": map[string]any{}}}
	o := New(inv, &fakeDocs{}, &fakeCases{caseID: ptrInt64(1)}, &fakeResults{}, nil)

	_, err := o.Run(context.Background(), rows, testRequest())
	require.NoError(t, err)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, int64(555), inv.calls[0].placeholders["consecutivo"])
}

func TestIndividualMissingCaseIDSkipsPersistence(t *testing.T) {
	rows := []source.Config{
		{CaseType: "INDIVIDUAL", SourceName: "G1", VariableName: "NOMBRE", Extraction: `result["nombre"]`},
	}
	inv := &fakeInvoker{responses: map[string]any{"G1": map[string]any{"nombre": "ANA"}}}
	results := &fakeResults{}
	o := New(inv, &fakeDocs{}, &fakeCases{caseID: nil}, results, nil)

	got, err := o.Run(context.Background(), rows, testRequest())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ANA", got[0]["NOMBRE"])
	assert.Zero(t, results.calls)
}

func TestIndividualPersistenceFailurePropagates(t *testing.T) {
	rows := []source.Config{
		{CaseType: "INDIVIDUAL", SourceName: "G1", VariableName: "V", Extraction: `result`},
	}
	inv := &fakeInvoker{responses: map[string]any{"G1": map[string]any{}}}
	o := New(inv, &fakeDocs{}, &fakeCases{caseID: ptrInt64(1)},
		&fakeResults{err: errors.New("constraint violation")}, nil)

	_, err := o.Run(context.Background(), rows, testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist risk results")
}

func collectiveRows(prompt string) []source.Config {
	return []source.Config{
		{CaseType: "COLECTIVO", SourceName: "FILENET_LIST_DOCUMENTOS",
			VariableName: "ID_DOC_LISTA_RIESGOS", Extraction: `result["documentos"][0]["id"]`},
		{CaseType: "COLECTIVO", SourceName: "FILENET_GET_DOCUMENTO", Prompt: prompt},
	}
}

func attachmentResponse(t *testing.T) map[string]any {
	t.Helper()
	// the document extractor is faked, so any bytes will do
	return map[string]any{"adjunto": base64.StdEncoding.EncodeToString([]byte("xlsx-bytes"))}
}

func TestCollectiveShortCircuitsWhenListFails(t *testing.T) {
	inv := &fakeInvoker{errs: map[string]error{"FILENET_LIST_DOCUMENTOS": errors.New("timeout")}}
	docs := &fakeDocs{}
	o := New(inv, docs, &fakeCases{}, &fakeResults{}, nil)

	got, err := o.Run(context.Background(), collectiveRows("extrae"), testRequest())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.False(t, inv.called("FILENET_GET_DOCUMENTO"))
	assert.False(t, docs.called)
}

func TestCollectiveThreadsDocumentListID(t *testing.T) {
	inv := &fakeInvoker{responses: map[string]any{
		"FILENET_LIST_DOCUMENTOS": map[string]any{
			"documentos": []any{map[string]any{"id": "X"}},
		},
		"FILENET_GET_DOCUMENTO": attachmentResponse(t),
	}}
	docs := &fakeDocs{records: []map[string]any{
		{"TIPO_DOCUMENTO": "CC", "NUMERO_DOCUMENTO": "111", "NOMBRE": "ANA"},
		{"TIPO_DOCUMENTO": "CC", "NUMERO_DOCUMENTO": "222", "NOMBRE": "LUIS"},
	}}
	results := &fakeResults{}
	o := New(inv, docs, &fakeCases{caseID: ptrInt64(900)}, results, nil)

	got, err := o.Run(context.Background(), collectiveRows("extrae los riesgos"), testRequest())
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.Len(t, inv.calls, 2)
	assert.Equal(t, "FILENET_GET_DOCUMENTO", inv.calls[1].sourceName)
	assert.Equal(t, "X", inv.calls[1].placeholders["id_doc_lista_riesgos"])
	// step one must not see step two's placeholder
	assert.NotContains(t, inv.calls[0].placeholders, "id_doc_lista_riesgos")

	assert.Equal(t, "extrae los riesgos", docs.prompt)
	assert.Equal(t, []byte("xlsx-bytes"), docs.attachment)

	assert.Equal(t, 1, results.calls)
	assert.Equal(t, int64(900), results.caseID)
	assert.Equal(t, got, results.records)
}

func TestCollectiveEmptyTerminalOutcomes(t *testing.T) {
	listOK := map[string]any{"documentos": []any{map[string]any{"id": "X"}}}

	t.Run("get-document fails", func(t *testing.T) {
		inv := &fakeInvoker{
			responses: map[string]any{"FILENET_LIST_DOCUMENTOS": listOK},
			errs:      map[string]error{"FILENET_GET_DOCUMENTO": errors.New("502")},
		}
		o := New(inv, &fakeDocs{}, &fakeCases{}, &fakeResults{}, nil)
		got, err := o.Run(context.Background(), collectiveRows("p"), testRequest())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no prompt on document row", func(t *testing.T) {
		inv := &fakeInvoker{responses: map[string]any{
			"FILENET_LIST_DOCUMENTOS": listOK,
			"FILENET_GET_DOCUMENTO":   attachmentResponse(t),
		}}
		docs := &fakeDocs{records: []map[string]any{{"NOMBRE": "ANA"}}}
		o := New(inv, docs, &fakeCases{}, &fakeResults{}, nil)
		got, err := o.Run(context.Background(), collectiveRows(""), testRequest())
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.False(t, docs.called)
	})

	t.Run("attachment undecodable", func(t *testing.T) {
		inv := &fakeInvoker{responses: map[string]any{
			"FILENET_LIST_DOCUMENTOS": listOK,
			"FILENET_GET_DOCUMENTO":   map[string]any{"adjunto": "%%%"},
		}}
		docs := &fakeDocs{}
		o := New(inv, docs, &fakeCases{}, &fakeResults{}, nil)
		got, err := o.Run(context.Background(), collectiveRows("p"), testRequest())
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.False(t, docs.called)
	})

	t.Run("extractor yields nothing", func(t *testing.T) {
		inv := &fakeInvoker{responses: map[string]any{
			"FILENET_LIST_DOCUMENTOS": listOK,
			"FILENET_GET_DOCUMENTO":   attachmentResponse(t),
		}}
		results := &fakeResults{}
		o := New(inv, &fakeDocs{records: nil}, &fakeCases{}, results, nil)
		got, err := o.Run(context.Background(), collectiveRows("p"), testRequest())
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Zero(t, results.calls)
	})
}

func TestCollectiveIgnoresUnknownSources(t *testing.T) {
	rows := append(collectiveRows("p"),
		source.Config{CaseType: "COLECTIVO", SourceName: "OTRA_FUENTE"})
	inv := &fakeInvoker{responses: map[string]any{
		"FILENET_LIST_DOCUMENTOS": map[string]any{"documentos": []any{map[string]any{"id": "X"}}},
		"FILENET_GET_DOCUMENTO":   attachmentResponse(t),
	}}
	o := New(inv, &fakeDocs{records: []map[string]any{}}, &fakeCases{}, &fakeResults{}, nil)

	_, err := o.Run(context.Background(), rows, testRequest())
	require.NoError(t, err)
	assert.False(t, inv.called("OTRA_FUENTE"))
}

func TestCollectiveMissingCaseIDStillReturnsRecords(t *testing.T) {
	inv := &fakeInvoker{responses: map[string]any{
		"FILENET_LIST_DOCUMENTOS": map[string]any{"documentos": []any{map[string]any{"id": "X"}}},
		"FILENET_GET_DOCUMENTO":   attachmentResponse(t),
	}}
	results := &fakeResults{}
	o := New(inv, &fakeDocs{records: []map[string]any{{"NOMBRE": "ANA"}}},
		&fakeCases{caseID: nil}, results, nil)

	got, err := o.Run(context.Background(), collectiveRows("p"), testRequest())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Zero(t, results.calls)
}
