package generator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"passfuse/internal/candidate"
	"passfuse/internal/identity"
	"passfuse/internal/services"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	errorSnippetBytes     = 512
)

// HTTP asks a model service for candidates. The request is a JSON document
// with the identity and sampling options; the response body is NDJSON, one
// {"password": "...", "score": 0.1} object per line, read lazily.
type HTTP struct {
	name        string
	url         string
	apiKey      string
	required    []identity.Field
	topN        int
	temperature float64

	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	sleeper        func(context.Context, time.Duration) error
}

// HTTPOptions configures an HTTP generator.
type HTTPOptions struct {
	APIKey              string
	Required            []identity.Field
	TopN                int
	SamplingTemperature float64
}

// HTTPOption customizes the transport.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// WithRetry overrides the retry count and base backoff.
func WithRetry(attempts int, baseDelay time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.retryAttempts = attempts
		h.retryBaseDelay = baseDelay
	}
}

// NewHTTP builds an HTTP generator. The per-call deadline comes from the
// adapter's context, so the client itself has no timeout.
func NewHTTP(name, url string, opts HTTPOptions, options ...HTTPOption) *HTTP {
	h := &HTTP{
		name:           name,
		url:            strings.TrimSpace(url),
		apiKey:         strings.TrimSpace(opts.APIKey),
		required:       append([]identity.Field(nil), opts.Required...),
		topN:           opts.TopN,
		temperature:    opts.SamplingTemperature,
		client:         &http.Client{},
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		sleeper:        sleepContext,
	}
	for _, opt := range options {
		opt(h)
	}
	if h.retryAttempts < 1 {
		h.retryAttempts = 1
	}
	return h
}

func (h *HTTP) Name() string { return h.name }

func (h *HTTP) Required() []identity.Field { return h.required }

type generateRequest struct {
	Identity            identity.Record `json:"identity"`
	Line                string          `json:"line"`
	TopN                int             `json:"top_n,omitempty"`
	SamplingTemperature float64         `json:"sampling_temperature,omitempty"`
}

type generatedCandidate struct {
	Password string   `json:"password"`
	Score    *float64 `json:"score"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *httpStatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

func (h *HTTP) Generate(ctx context.Context, rec identity.Record) (candidate.Stream, error) {
	payload, err := json.Marshal(generateRequest{
		Identity:            rec,
		Line:                rec.Line(),
		TopN:                h.topN,
		SamplingTemperature: h.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= h.retryAttempts; attempt++ {
		body, err := h.send(ctx, payload)
		if err == nil {
			return h.stream(body), nil
		}
		lastErr = err
		var status *httpStatusError
		if !errors.As(err, &status) || !status.retryable() || attempt == h.retryAttempts {
			break
		}
		delay := h.retryBaseDelay * time.Duration(1<<(attempt-1))
		if err := h.sleeper(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, services.Wrap(services.ErrExternalTool, "generate", h.name, "model service request", lastErr)
}

func (h *HTTP) send(ctx context.Context, payload []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetBytes))
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return resp.Body, nil
}

func (h *HTTP) stream(body io.ReadCloser) candidate.Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	next := func() (string, bool, error) {
		if scanner.Scan() {
			return scanner.Text(), true, nil
		}
		if err := scanner.Err(); err != nil {
			return "", false, fmt.Errorf("read response: %w", err)
		}
		return "", false, nil
	}
	return candidate.NewRanked(h.name, next, parseNDJSON, body.Close)
}

// parseNDJSON skips blank lines and lines that are not candidate objects.
func parseNDJSON(line string) (string, float64, bool, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", 0, false, false
	}
	var c generatedCandidate
	if err := json.Unmarshal([]byte(line), &c); err != nil || c.Password == "" {
		return "", 0, false, false
	}
	if c.Score == nil {
		return c.Password, 0, false, true
	}
	return c.Password, *c.Score, true, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
