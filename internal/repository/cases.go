package repository

import (
	"context"
	"log/slog"

	"github.com/motorsuscripcion/risk-info-service/constants"
)

type CaseRepository interface {
	// ResolveCaseID returns the most recent pending case id for the exact
	// (consecutivo, key) tuple, or nil when no pending case matches.
	ResolveCaseID(ctx context.Context, consecutivo int64, key CaseKey) (*int64, error)
}

type caseRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewCaseRepository(db Querier, logger *slog.Logger) CaseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &caseRepository{db: db, logger: logger}
}

const resolveCaseIDSQL = `
	SELECT MAX("CASO_ID")
	FROM "motor_suscripcion"."ms_estados_casos"
	WHERE "CANAL_ID" = $1
	  AND "CODIGO_PRODUCTO" = $2
	  AND "CODIGO_SUBPRODUCTO" = $3
	  AND "CODIGO_MOVIMIENTO" = $4
	  AND COALESCE("CODIGO_MODIFICACION", '') = COALESCE($5, '')
	  AND "ESTADO" = $6`

func (r *caseRepository) ResolveCaseID(ctx context.Context, consecutivo int64, key CaseKey) (*int64, error) {
	var caseID *int64
	err := r.db.QueryRow(ctx, resolveCaseIDSQL,
		consecutivo, key.Product, key.Subproduct, key.Movement, key.Modification,
		string(constants.CaseStatusPending),
	).Scan(&caseID)
	if err != nil {
		r.logger.Error("failed to resolve case id", "consecutivo", consecutivo, "error", err)
		return nil, err
	}
	return caseID, nil
}
