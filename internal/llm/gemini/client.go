// Package gemini implements llm.DocumentAnalyzer against a Gemini-style
// generateContent REST endpoint. All backend settings are injected through
// Config; the client never reads ambient SDK or process state.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motorsuscripcion/risk-info-service/internal/llm"
)

type Config struct {
	BaseURL string // e.g. https://generativelanguage.googleapis.com/v1beta
	Model   string // e.g. gemini-2.5-pro
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

var _ llm.DocumentAnalyzer = (*Client)(nil)

// request/response shapes for the generateContent wire format. Only the
// fields this client touches are declared.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// AnalyzeDocument submits {corpus, prompt} and returns the concatenated text
// of the first candidate. The reply is free-form; callers must not assume
// pure JSON.
func (c *Client) AnalyzeDocument(ctx context.Context, prompt, corpus string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.analyze.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"corpus_len", len(corpus),
	)

	body := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: corpus}, {Text: prompt}},
		}},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.analyze.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("llm.analyze.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		c.logger.Error("llm.analyze.no_candidates",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("no candidates in model response")
	}

	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()

	c.logger.Info("llm.analyze.ok",
		"req_id", rid,
		"reply_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
