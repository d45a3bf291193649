// Package docparse turns a spreadsheet attachment into structured risk
// records by way of a generative document-understanding backend.
//
// The adapter is a hard error boundary: decode failures, model failures and
// malformed model output all collapse to a nil record list. Nothing in this
// package is allowed to fail its caller.
package docparse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/motorsuscripcion/risk-info-service/constants"
	"github.com/motorsuscripcion/risk-info-service/internal/llm"
)

// Adapter routes {prompt, spreadsheet} through the model backend and parses
// the reply into risk records.
type Adapter struct {
	analyzer llm.DocumentAnalyzer
	logger   *slog.Logger
}

func NewAdapter(analyzer llm.DocumentAnalyzer, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{analyzer: analyzer, logger: logger}
}

// ExtractRecords renders every sheet of the workbook as named CSV text,
// submits the corpus with the instruction prompt, and scans the free-form
// reply for a JSON object carrying a list-valued "riesgos" field. Any
// failure on that path yields nil.
func (a *Adapter) ExtractRecords(ctx context.Context, prompt string, attachment []byte) (records []map[string]any) {
	rid := uuid.New().String()
	start := time.Now()

	// excelize is not panic-proof against adversarial files; the adapter
	// contract is nil, not a crash.
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("docparse.panic_recovered", "req_id", rid, "panic", r)
			records = nil
		}
	}()

	corpus, err := sheetsToCSV(attachment)
	if err != nil {
		a.logger.Warn("docparse.workbook_error", "req_id", rid, "error", err)
		return nil
	}

	reply, err := a.analyzer.AnalyzeDocument(ctx, prompt, corpus)
	if err != nil {
		a.logger.Warn("docparse.model_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}

	span := ExtractJSONObject(reply)
	if span == nil {
		a.logger.Warn("docparse.no_json_span", "req_id", rid, "reply_len", len(reply))
		return nil
	}

	if err := validateAgainstSchema(buildRiskListSchema(), span); err != nil {
		a.logger.Warn("docparse.schema_mismatch", "req_id", rid, "error", err)
		return nil
	}

	var parsed struct {
		Riesgos []map[string]any `json:"riesgos"`
	}
	if err := json.Unmarshal(span, &parsed); err != nil {
		a.logger.Warn("docparse.unmarshal_error", "req_id", rid, "error", err)
		return nil
	}
	if parsed.Riesgos == nil {
		parsed.Riesgos = []map[string]any{}
	}

	a.logger.Info("docparse.ok",
		"req_id", rid,
		"records", len(parsed.Riesgos),
		"corpus_len", len(corpus),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return parsed.Riesgos
}

// DecodeAttachment pulls the base64 spreadsheet out of a decoded source
// response. Absent, empty or undecodable attachments yield nil.
func DecodeAttachment(result any) []byte {
	m, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	b64, ok := m[constants.AttachmentField].(string)
	if !ok || strings.TrimSpace(b64) == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil
	}
	return raw
}

// sheetsToCSV renders every sheet as CSV, each wrapped in markers naming the
// sheet, concatenated into one corpus.
func sheetsToCSV(attachment []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(attachment))
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", err
		}
		b.WriteString("--- INICIO DE HOJA: " + sheet + " ---\n")
		w := csv.NewWriter(&b)
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", err
		}
		b.WriteString("--- FIN DE HOJA: " + sheet + " ---\n\n")
	}
	return b.String(), nil
}

// ExtractJSONObject isolates the span between the first '{' and the last '}'
// of a model reply. The scan is deliberately crude: model output is prose
// with a JSON object somewhere inside it, not guaranteed JSON.
func ExtractJSONObject(raw string) []byte {
	startIdx := strings.IndexByte(raw, '{')
	endIdx := strings.LastIndexByte(raw, '}')
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return nil
	}
	return []byte(raw[startIdx : endIdx+1])
}
