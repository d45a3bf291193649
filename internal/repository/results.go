package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/motorsuscripcion/risk-info-service/constants"
)

type ResultRepository interface {
	// SaveRiskResults inserts the records idempotently (keyed on the derived
	// RIESGO_MOTOR_ID) and, when at least one row is newly inserted,
	// transitions the case status to "risks identified". Both the insert
	// batch and the status update propagate failures; the insert batch is
	// transactional.
	SaveRiskResults(ctx context.Context, records []map[string]any, caseID int64, key CaseKey) (int, error)
}

type resultRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewResultRepository(db Querier, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepository{db: db, logger: logger}
}

const insertResultSQL = `
	INSERT INTO "motor_suscripcion"."ms_resultados" (
		"RIESGO_MOTOR_ID", "CASO_ID", "TIPO_DOCUMENTO_ASEGURADO",
		"NUMERO_DOCUMENTO_ASEGURADO", "NOMBRE_ASEGURADO"
	) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT ("RIESGO_MOTOR_ID") DO NOTHING`

const updateCaseStatusSQL = `
	UPDATE "motor_suscripcion"."ms_estados_casos"
	SET "ESTADO" = $1
	WHERE "CASO_ID" = $2`

func (r *resultRepository) SaveRiskResults(ctx context.Context, records []map[string]any, caseID int64, key CaseKey) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, record := range records {
		docType := fieldString(record, constants.FieldDocumentType)
		docNumber := fieldString(record, constants.FieldDocumentNumber)
		name := fieldString(record, constants.FieldName)

		tag, err := tx.Exec(ctx, insertResultSQL,
			DedupKey(caseID, key, record),
			caseID,
			nullable(docType),
			documentNumber(docNumber),
			nullable(name),
		)
		if err != nil {
			r.logger.Error("failed to insert risk record", "case_id", caseID, "error", err)
			return 0, fmt.Errorf("insert risk record: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert tx: %w", err)
	}

	r.logger.Info("risk records persisted",
		"case_id", caseID, "records", len(records), "inserted", inserted)

	// A fully-deduplicated batch means this case was already processed;
	// its status must not move again.
	if inserted > 0 {
		if _, err := r.db.Exec(ctx, updateCaseStatusSQL,
			string(constants.CaseStatusRisksIdentified), caseID); err != nil {
			r.logger.Error("failed to update case status", "case_id", caseID, "error", err)
			return inserted, fmt.Errorf("update case status: %w", err)
		}
	}
	return inserted, nil
}

// DedupKey derives the stable RIESGO_MOTOR_ID for one record: the case id,
// the product/subproduct/movement codes, the insured party's document type
// and number, and the plate when present, joined with "-". Empty parts are
// skipped so the key never carries dangling separators.
func DedupKey(caseID int64, key CaseKey, record map[string]any) string {
	parts := []string{
		strconv.FormatInt(caseID, 10),
		strconv.FormatInt(key.Product, 10),
		strconv.FormatInt(key.Subproduct, 10),
		key.Movement,
		fieldString(record, constants.FieldDocumentType),
		fieldString(record, constants.FieldDocumentNumber),
		fieldString(record, constants.FieldPlate),
	}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" && p != "0" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}

// fieldString renders a record field for key building and persistence.
// Model output arrives as decoded JSON, so numbers are float64.
func fieldString(record map[string]any, field string) string {
	switch v := record[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// documentNumber coerces the document number to an integer column value,
// or NULL when absent or non-numeric.
func documentNumber(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
