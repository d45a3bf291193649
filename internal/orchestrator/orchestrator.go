// Package orchestrator runs the two risk-information aggregation strategies:
// parallel fan-out across independent sources for individual cases, and the
// fixed two-step document pipeline for collective cases.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/motorsuscripcion/risk-info-service/constants"
	"github.com/motorsuscripcion/risk-info-service/internal/common"
	"github.com/motorsuscripcion/risk-info-service/internal/repository"
	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

// SourceInvoker issues one configured source call. *source.Invoker is the
// production implementation.
type SourceInvoker interface {
	Invoke(ctx context.Context, cfg source.Config, placeholders map[string]any) (any, error)
}

// DocumentExtractor converts a spreadsheet attachment into risk records.
// *docparse.Adapter is the production implementation; nil means "nothing
// extractable", never an error.
type DocumentExtractor interface {
	ExtractRecords(ctx context.Context, prompt string, attachment []byte) []map[string]any
}

// Request identifies the case being orchestrated.
type Request struct {
	Consecutivo int64
	Key         repository.CaseKey
}

type Orchestrator struct {
	invoker SourceInvoker
	docs    DocumentExtractor
	cases   repository.CaseRepository
	results repository.ResultRepository
	logger  *slog.Logger
}

func New(invoker SourceInvoker, docs DocumentExtractor, cases repository.CaseRepository,
	results repository.ResultRepository, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		invoker: invoker,
		docs:    docs,
		cases:   cases,
		results: results,
		logger:  logger,
	}
}

// Run selects the strategy declared by the configuration rows and executes
// it. The returned slice is never nil: zero risks is a valid outcome, not a
// failure. An unknown case type is an input error surfaced before any
// source call.
func (o *Orchestrator) Run(ctx context.Context, rows []source.Config, req Request) ([]map[string]any, error) {
	if len(rows) == 0 {
		return nil, common.NewAppError("NO_CONFIG", "no source configuration rows", common.ErrNotFound)
	}

	caseType, ok := constants.NormalizeCaseType(rows[0].CaseType)
	if !ok {
		return nil, common.NewAppError("INVALID_CASE_TYPE",
			fmt.Sprintf("case type %q is not supported", rows[0].CaseType), common.ErrInvalidInput)
	}

	switch caseType {
	case constants.CaseTypeIndividual:
		return o.runIndividual(ctx, rows, req)
	default:
		return o.runCollective(ctx, rows, req)
	}
}

// persistIfCasePending resolves the case's persisted identifier and saves
// the records when a pending case exists. A missing case id is recoverable:
// the records are still returned to the caller, just not persisted.
func (o *Orchestrator) persistIfCasePending(ctx context.Context, records []map[string]any, req Request) error {
	caseID, err := o.cases.ResolveCaseID(ctx, req.Consecutivo, req.Key)
	if err != nil {
		return common.WrapError(err, "resolve case id")
	}
	if caseID == nil {
		o.logger.Warn("orchestrator.case_id_not_found",
			"consecutivo", req.Consecutivo,
			"hint", "records returned but not persisted")
		return nil
	}
	if _, err := o.results.SaveRiskResults(ctx, records, *caseID, req.Key); err != nil {
		return common.WrapError(err, "persist risk results")
	}
	return nil
}
