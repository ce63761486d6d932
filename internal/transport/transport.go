// Package transport performs replayed and direct calls against the inventory REST API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/allisson/invsync/internal/errors"
)

// maxErrorBody bounds how much of an error response is kept as the failure cause.
const maxErrorBody = 512

// Kind classifies the outcome of a call.
type Kind string

const (
	// KindSuccess is a 2xx response.
	KindSuccess Kind = "success"
	// KindClientError is a 4xx response the server will never accept on retry.
	KindClientError Kind = "client_error"
	// KindTransportError is a network failure, timeout, 5xx, 408 or 429; the call may be retried.
	KindTransportError Kind = "transport_error"
)

// Request is a single call against the inventory API.
type Request struct {
	Method string
	// Path is relative to the API base URL, e.g. "/api/batches/7/collect".
	Path string
	Body json.RawMessage
	// IdempotencyKey lets the server recognise a replay of a call it already applied.
	IdempotencyKey string
}

// Outcome is the classified result of a call.
type Outcome struct {
	Kind       Kind
	StatusCode int
	Body       json.RawMessage
	Err        error
}

// Retryable reports whether the call may succeed if attempted again.
func (o Outcome) Retryable() bool {
	return o.Kind == KindTransportError
}

// Cause describes why the call did not succeed.
func (o Outcome) Cause() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.Kind == KindSuccess {
		return ""
	}
	body := strings.TrimSpace(string(o.Body))
	var text string
	if strings.HasPrefix(body, `"`) && json.Unmarshal(o.Body, &text) == nil {
		body = strings.TrimSpace(text)
	}
	if body == "" {
		return fmt.Sprintf("server returned %d", o.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", o.StatusCode, body)
}

// Transport sends calls to the inventory API.
type Transport interface {
	Send(ctx context.Context, req Request) Outcome
}

// Classify maps an HTTP status code to an outcome kind.
func Classify(statusCode int) Kind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return KindSuccess
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return KindTransportError
	case statusCode >= 400 && statusCode < 500:
		return KindClientError
	default:
		return KindTransportError
	}
}

// HTTPTransport is a Transport over net/http. It also fetches authoritative views for the cache.
type HTTPTransport struct {
	client    *http.Client
	baseURL   string
	authToken string
}

// NewHTTPTransport creates an HTTPTransport. Every call is bounded by timeout.
func NewHTTPTransport(baseURL, authToken string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
	}
}

// Send performs req and classifies the response.
func (t *HTTPTransport) Send(ctx context.Context, req Request) Outcome {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := t.newRequest(ctx, req.Method, req.Path, body)
	if err != nil {
		return Outcome{Kind: KindClientError, Err: err}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Outcome{Kind: KindTransportError, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	kind := Classify(resp.StatusCode)
	limit := int64(maxErrorBody)
	if kind == KindSuccess {
		limit = -1
	}
	respBody, err := readBody(resp.Body, limit)
	if err != nil && kind == KindSuccess {
		// The call was applied; only the response body is lost.
		respBody = nil
	}

	return Outcome{Kind: kind, StatusCode: resp.StatusCode, Body: jsonBody(kind, respBody)}
}

// jsonBody keeps body only when it is valid JSON. A non-JSON success body is dropped; a
// non-JSON error body, such as a truncated one or a proxy's HTML page, becomes a JSON string.
func jsonBody(kind Kind, body json.RawMessage) json.RawMessage {
	if body == nil || json.Valid(body) {
		return body
	}
	if kind == KindSuccess {
		return nil
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}

// Fetch loads the authoritative view at key, which is an API path.
func (t *HTTPTransport) Fetch(ctx context.Context, key string) (json.RawMessage, error) {
	httpReq, err := t.newRequest(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.Wrap(apperrors.ErrNotFound, key)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperrors.Wrapf(apperrors.ErrUnavailable, "fetch %s returned %d", key, resp.StatusCode)
	}

	body, err := readBody(resp.Body, -1)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, apperrors.Wrapf(apperrors.ErrUnavailable, "fetch %s returned a non-JSON body", key)
	}
	return body, nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if t.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.authToken)
	}
	return req, nil
}

// readBody reads r fully, or at most limit bytes when limit is not negative.
func readBody(r io.Reader, limit int64) (json.RawMessage, error) {
	if limit >= 0 {
		r = io.LimitReader(r, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
