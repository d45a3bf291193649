package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/motorsuscripcion/risk-info-service/constants"
	"github.com/motorsuscripcion/risk-info-service/internal/extract"
	"github.com/motorsuscripcion/risk-info-service/internal/source"
)

// runIndividual fans out one call per source group, extracts every group's
// declared variables from its response, and merges the results into a single
// record. Groups are independent: no ordering guarantee, no cross-group data
// dependency, and a failing group only leaves its own variables nil.
func (o *Orchestrator) runIndividual(ctx context.Context, rows []source.Config, req Request) ([]map[string]any, error) {
	start := time.Now()
	placeholders := map[string]any{constants.PlaceholderConsecutivo: req.Consecutivo}

	variables := make(map[string]any)
	for _, name := range source.DeclaredVariables(rows) {
		variables[name] = nil
	}

	groups := source.GroupBySource(rows)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, group := range groups {
		wg.Add(1)
		go func(name string, group []source.Config) {
			defer wg.Done()
			// One misbehaving group must never take down its siblings;
			// the join below has to see every group finish.
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("orchestrator.individual.group_panic",
						"source", name, "panic", r)
				}
			}()

			result, err := o.invoker.Invoke(ctx, group[0], placeholders)
			if err != nil || result == nil {
				o.logger.Warn("orchestrator.individual.source_failed",
					"source", name, "error", err)
				return
			}

			for _, row := range group {
				if row.VariableName == "" || row.Extraction == "" {
					continue
				}
				value := extract.Eval(row.Extraction, result)
				mu.Lock()
				variables[row.VariableName] = value
				mu.Unlock()
			}
		}(name, group)
	}
	wg.Wait()

	record := make(map[string]any, len(variables))
	for k, v := range variables {
		record[k] = v
	}
	records := []map[string]any{record}

	if err := o.persistIfCasePending(ctx, records, req); err != nil {
		return nil, err
	}

	o.logger.Info("orchestrator.individual.ok",
		"consecutivo", req.Consecutivo,
		"sources", len(groups),
		"variables", len(variables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}
