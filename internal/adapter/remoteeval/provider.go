// Package remoteeval implements the evaluator port against a remote HTTP
// evaluation service. Each Evaluate call is a single POST; the caller
// controls the deadline through the request context.
package remoteeval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/concordat/concord/internal/port/evaluator"
)

const providerName = "remote"

// Provider calls a remote evaluation endpoint over HTTP JSON.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a remote evaluation provider. baseURL is required.
func New(baseURL, apiKey string, timeout time.Duration) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remoteeval: url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (p *Provider) Name() string { return providerName }

// Evaluate posts the request to <baseURL>/evaluate and decodes the verdict.
func (p *Provider) Evaluate(ctx context.Context, req evaluator.Request) (*evaluator.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("remoteeval marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remoteeval request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remoteeval call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remoteeval status %d: %s", resp.StatusCode, string(respBody))
	}

	var result evaluator.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("remoteeval decode: %w", err)
	}

	if result.Score < 0 || result.Score > 1 || result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("remoteeval: score %.3f confidence %.3f out of range", result.Score, result.Confidence)
	}

	return &result, nil
}
