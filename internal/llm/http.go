package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// HTTPError is a non-2xx reply from a provider.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("non-2xx status: %d: %s", e.Status, body)
}

// Retryable reports whether the provider asked us to come back later.
func (e *HTTPError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// MaxAttempts bounds SendJSON retries on 429 and 502-504 replies.
var MaxAttempts = 3

// retryBase is the first backoff step; it doubles per attempt unless Retry-After says otherwise.
var retryBase = 500 * time.Millisecond

// SendJSON posts body as JSON to url with optional headers and returns the raw response body.
// It is provider-neutral: callers decide the URL and headers. Rate-limit and gateway replies are
// retried with backoff until MaxAttempts or ctx ends.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	reqID := uuid.NewString()
	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	for attempt := 1; ; attempt++ {
		raw, status, wait, err := sendOnce(ctx, client, url, bs, headers, logger.With("req_id", reqID, "attempt", attempt))
		var herr *HTTPError
		if err == nil || attempt >= MaxAttempts || !errors.As(err, &herr) || !herr.Retryable() {
			return raw, status, err
		}
		if wait <= 0 {
			wait = retryBase << (attempt - 1)
		}
		logger.Warn("llm.http.retry", "req_id", reqID, "status", status, "wait_ms", wait.Milliseconds())
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return raw, status, err
		case <-t.C:
		}
	}
}

func sendOnce(ctx context.Context, client *http.Client, url string, bs []byte, headers map[string]string, log *slog.Logger) ([]byte, int, time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		log.Error("llm.http.build_request_error", "error", err)
		return nil, 0, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Info("llm.http.request", "url", url, "content_length", len(bs))
	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, 0, fmt.Errorf("send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Warn("llm.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("read response: %w", err)
	}
	log.Info("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, retryAfter(resp.Header.Get("Retry-After")), &HTTPError{Status: resp.StatusCode, Body: raw}
	}
	return raw, resp.StatusCode, 0, nil
}

// retryAfter understands the delta-seconds form only, capped at 30s.
func retryAfter(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	if n > 30 {
		n = 30
	}
	return time.Duration(n) * time.Second
}
