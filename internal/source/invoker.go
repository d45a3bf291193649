// Package source models configured HTTP sources and issues their calls.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motorsuscripcion/risk-info-service/internal/template"
)

// DefaultTimeout bounds every individual source call.
const DefaultTimeout = 90 * time.Second

// Invoker issues one HTTP request per configured source. A single Invoker
// (and its client) is shared across the concurrent groups of a case so
// connections are reused.
type Invoker struct {
	client *http.Client
	logger *slog.Logger
}

func NewInvoker(timeout time.Duration, logger *slog.Logger) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Invoke builds the request described by cfg with placeholders substituted
// into URL, headers and (method-dependent) body or query, sends it, and
// returns the decoded JSON body. Transport errors, non-2xx statuses and
// undecodable bodies all come back as an error; callers treat any error as
// a soft per-source failure, never as a reason to abort sibling sources.
func (i *Invoker) Invoke(ctx context.Context, cfg Config, placeholders map[string]any) (any, error) {
	reqID := uuid.New().String()
	start := time.Now()

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	rawURL, _ := template.Substitute(cfg.URLTemplate, placeholders).(string)
	headers := template.Substitute(template.ParseMapping(cfg.HeaderTemplate), placeholders).(map[string]any)
	payload := template.Substitute(template.ParseMapping(cfg.PayloadTemplate), placeholders).(map[string]any)
	params := template.Substitute(template.ParseMapping(cfg.ParamsTemplate), placeholders).(map[string]any)

	var body io.Reader
	if method != http.MethodGet && len(payload) > 0 {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		i.logger.Error("source.invoke.build_request_error",
			"req_id", reqID, "source", cfg.SourceName, "error", err)
		return nil, fmt.Errorf("build request: %w", err)
	}

	if method == http.MethodGet && len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, stringify(v))
		}
		req.URL.RawQuery = q.Encode()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, stringify(v))
	}

	i.logger.Info("source.invoke.request",
		"req_id", reqID,
		"source", cfg.SourceName,
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := i.client.Do(req)
	if err != nil {
		i.logger.Warn("source.invoke.send_error",
			"req_id", reqID, "source", cfg.SourceName, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			i.logger.Warn("source.invoke.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		i.logger.Warn("source.invoke.read_error",
			"req_id", reqID, "source", cfg.SourceName, "error", err)
		return nil, err
	}

	i.logger.Info("source.invoke.response",
		"req_id", reqID,
		"source", cfg.SourceName,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
