package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/motorsuscripcion/risk-info-service/constants"
	"github.com/motorsuscripcion/risk-info-service/internal/docparse"
	"github.com/motorsuscripcion/risk-info-service/internal/extract"
	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

// runCollective executes the fixed two-step pipeline: list the case's
// documents, then fetch the risk-list document and route its attachment
// through the document extractor. The steps run strictly in order because
// step two's placeholders depend on step one's extracted value; any step
// that yields no result terminates the pipeline with an empty record list.
func (o *Orchestrator) runCollective(ctx context.Context, rows []source.Config, req Request) ([]map[string]any, error) {
	start := time.Now()
	placeholders := map[string]any{constants.PlaceholderConsecutivo: req.Consecutivo}
	empty := []map[string]any{}

	// Stored source names carry stray whitespace; sources outside the fixed
	// two-name sequence are ignored.
	groups := make(map[string][]source.Config)
	for _, r := range rows {
		name := strings.TrimSpace(r.SourceName)
		groups[name] = append(groups[name], r)
	}

	for _, name := range constants.CollectivePipelineOrder {
		group, ok := groups[name]
		if !ok || len(group) == 0 {
			continue
		}
		cfg := group[0]

		result, err := o.invoker.Invoke(ctx, cfg, placeholders)
		if err != nil || result == nil {
			o.logger.Warn("orchestrator.collective.step_no_result",
				"source", name, "error", err)
			return empty, nil
		}

		switch name {
		case constants.SourceListDocuments:
			if cfg.VariableName == "" || cfg.Extraction == "" {
				continue
			}
			value := extract.Eval(cfg.Extraction, result)
			if cfg.VariableName == constants.VariableDocumentListID {
				// The one point of cross-step data dependency: step two's
				// request templates reference this placeholder.
				placeholders[constants.PlaceholderDocumentListID] = value
			}

		case constants.SourceGetDocument:
			if cfg.Prompt == "" {
				o.logger.Warn("orchestrator.collective.no_prompt", "source", name)
				return empty, nil
			}
			attachment := docparse.DecodeAttachment(result)
			if attachment == nil {
				o.logger.Warn("orchestrator.collective.no_attachment", "source", name)
				return empty, nil
			}
			records := o.docs.ExtractRecords(ctx, cfg.Prompt, attachment)
			if records == nil {
				o.logger.Warn("orchestrator.collective.extraction_empty", "source", name)
				return empty, nil
			}

			if err := o.persistIfCasePending(ctx, records, req); err != nil {
				return nil, err
			}

			o.logger.Info("orchestrator.collective.ok",
				"consecutivo", req.Consecutivo,
				"records", len(records),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return records, nil
		}
	}
	return empty, nil
}
