// Package actions implements the optional outbound finding sinks from
// spec.md §4.3 step 4 ("emit a duplicate copy to an optional outbound sink
// (upstream collector webhook) when configured") and SPEC_FULL.md's
// DOMAIN STACK Redis fan-out for the external action executor. The webhook
// sink is adapted from the teacher's internal/output/alerthttp writer
// (net/http.Client POST of a JSON body) and the Redis sink publishes with
// go-redis (see redispublish.go); both are per-finding dispatchers, since
// the detection queue already drains one finding at a time.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"striem/internal/errs"
	"striem/internal/logger"
	"striem/internal/metrics"
	"striem/pkg/ocsf"
)

// WebhookConfig configures the outbound HTTP sink.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Webhook posts each finding as a JSON body to a configured URL, mirroring
// the teacher's alerthttp.Writer shape (one *http.Client, header injection,
// >=300 status treated as failure).
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhook validates cfg and builds a Webhook sink.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, &errs.ActionError{Target: "webhook", Err: fmt.Errorf("webhook URL is empty")}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: cfg.URL, headers: cfg.Headers, client: &http.Client{Timeout: timeout}}, nil
}

// Handle posts finding, logging (never retrying) on failure, matching
// spec.md §7's ActionError policy.
func (w *Webhook) Handle(finding *ocsf.Finding) {
	if err := w.post(finding); err != nil {
		metrics.ActionDispatched(w.url, false)
		logger.Errorf("Webhook dispatch failed for finding %s: %v", finding.RuleUID, err)
		return
	}
	metrics.ActionDispatched(w.url, true)
}

func (w *Webhook) post(finding *ocsf.Finding) error {
	body, err := json.Marshal(finding.ToEvent().Native())
	if err != nil {
		return &errs.ActionError{Target: w.url, Err: fmt.Errorf("marshal finding: %w", err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &errs.ActionError{Target: w.url, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return &errs.ActionError{Target: w.url, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return &errs.ActionError{Target: w.url, Err: fmt.Errorf("status %s", resp.Status)}
	}
	return nil
}

// Close releases no resources; present for symmetry with Redis.
func (w *Webhook) Close() error { return nil }
