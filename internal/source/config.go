package source

// Config is one row of the source-configuration table. Rows sharing
// SourceName describe the same HTTP call; only VariableName/Extraction vary
// per row, so the first row of a group is authoritative for request
// construction.
type Config struct {
	SourceName      string
	CaseType        string
	URLTemplate     string
	Method          string
	HeaderTemplate  string
	PayloadTemplate string
	ParamsTemplate  string
	VariableName    string // empty for pipeline-control rows
	Extraction      string // empty when the row extracts nothing
	Prompt          string // non-empty only on the document-processing row
}

// GroupBySource buckets rows by source name, preserving row order inside
// each group.
func GroupBySource(rows []Config) map[string][]Config {
	groups := make(map[string][]Config)
	for _, r := range rows {
		groups[r.SourceName] = append(groups[r.SourceName], r)
	}
	return groups
}

// DeclaredVariables lists every distinct non-empty variable name in rows,
// in first-appearance order.
func DeclaredVariables(rows []Config) []string {
	seen := make(map[string]struct{}, len(rows))
	var names []string
	for _, r := range rows {
		if r.VariableName == "" {
			continue
		}
		if _, ok := seen[r.VariableName]; ok {
			continue
		}
		seen[r.VariableName] = struct{}{}
		names = append(names, r.VariableName)
	}
	return names
}
