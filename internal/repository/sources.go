package repository

import (
	"context"
	"log/slog"

	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

// CaseKey identifies a case configuration: product, subproduct, movement and
// modification codes. Modification is compared with COALESCE because legacy
// rows store NULL instead of the empty string.
type CaseKey struct {
	Product      int64
	Subproduct   int64
	Movement     string
	Modification string
}

type SourceRepository interface {
	ListSourceConfigs(ctx context.Context, key CaseKey) ([]source.Config, error)
}

type sourceRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewSourceRepository(db Querier, logger *slog.Logger) SourceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sourceRepository{db: db, logger: logger}
}

const listSourceConfigsSQL = `
	SELECT "FUENTE", "TIPO_PRODUCTO", "URL", "METODO", "HEADER", "PAYLOAD", "PARAMS",
	       "VARIABLE", "EXTRACCION", "PROMPT"
	FROM "motor_suscripcion"."ms_identificacion_riesgos"
	WHERE "CODIGO_PRODUCTO" = $1
	  AND "CODIGO_SUBPRODUCTO" = $2
	  AND "CODIGO_MOVIMIENTO" = $3
	  AND COALESCE("CODIGO_MODIFICACION", '') = COALESCE($4, '')
	ORDER BY "FUENTE", "VARIABLE"`

func (r *sourceRepository) ListSourceConfigs(ctx context.Context, key CaseKey) ([]source.Config, error) {
	rows, err := r.db.Query(ctx, listSourceConfigsSQL,
		key.Product, key.Subproduct, key.Movement, key.Modification)
	if err != nil {
		r.logger.Error("failed to query source configs", "error", err)
		return nil, err
	}
	defer rows.Close()

	var configs []source.Config
	for rows.Next() {
		var (
			cfg                                 source.Config
			method, header, payload, params    *string
			variable, extraction, prompt, kind *string
		)
		if err := rows.Scan(&cfg.SourceName, &kind, &cfg.URLTemplate, &method,
			&header, &payload, &params, &variable, &extraction, &prompt); err != nil {
			r.logger.Error("failed to scan source config row", "error", err)
			return nil, err
		}
		cfg.CaseType = deref(kind)
		cfg.Method = deref(method)
		cfg.HeaderTemplate = deref(header)
		cfg.PayloadTemplate = deref(payload)
		cfg.ParamsTemplate = deref(params)
		cfg.VariableName = deref(variable)
		cfg.Extraction = deref(extraction)
		cfg.Prompt = deref(prompt)
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
