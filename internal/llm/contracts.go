package llm

import "context"

// DocumentAnalyzer is the generative document-understanding boundary: given
// an instruction prompt and a textual tabular corpus, return the model's
// free-form text reply. Implementations own authentication and transport;
// callers own parsing of whatever the model chose to say.
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, prompt, corpus string) (string, error)
}
