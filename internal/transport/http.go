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

	"github.com/google/uuid"

	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/query"
)

// DefaultTimeout bounds every HTTP request.
const DefaultTimeout = 30 * time.Second

// HTTP is a REST transport over net/http.
type HTTP struct {
	baseURL    string
	token      string
	envelope   string
	httpClient *http.Client
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) HTTPOption {
	return func(h *HTTP) { h.token = token }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) {
		if timeout > 0 {
			h.httpClient.Timeout = timeout
		}
	}
}

// WithEnvelope unwraps response bodies of the form {"<key>": ...}.
func WithEnvelope(key string) HTTPOption {
	return func(h *HTTP) { h.envelope = key }
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// NewHTTP creates a REST transport rooted at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Get implements Transport.
func (h *HTTP) Get(ctx context.Context, path string, params domain.Values) ([]byte, error) {
	return h.do(ctx, http.MethodGet, path, params, nil, "")
}

// Post implements Transport.
func (h *HTTP) Post(ctx context.Context, path string, body any, opts PostOptions) ([]byte, error) {
	return h.do(ctx, http.MethodPost, path, opts.Params, body, opts.ContentType)
}

// do executes an HTTP request and returns the unwrapped response body.
func (h *HTTP) do(ctx context.Context, method, path string, params domain.Values, body any, contentType string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		if contentType == ContentTypeText {
			reqBody = strings.NewReader(fmt.Sprint(body))
		} else {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, &domain.TransportError{Method: method, Path: path, Message: "marshal body", Err: err}
			}
			reqBody = bytes.NewReader(data)
		}
	}
	if contentType == "" {
		contentType = "application/json"
	}

	target := h.url(path)
	if qs := query.Encode(params); qs != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + qs
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &domain.TransportError{Method: method, Path: path, Message: "create request", Err: err}
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &domain.TransportError{Method: method, Path: path, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode >= 400 {
		msg, ok := extractAPIErrorBody(respBody)
		if !ok {
			msg = strings.TrimSpace(string(respBody))
		}
		return nil, &domain.TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
	}

	return h.unwrap(respBody), nil
}

func (h *HTTP) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.baseURL + "/" + strings.TrimLeft(path, "/")
}

// unwrap strips the configured envelope key when present.
func (h *HTTP) unwrap(body []byte) []byte {
	if h.envelope == "" || len(body) == 0 || body[0] != '{' {
		return body
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	if inner, ok := envelope[h.envelope]; ok && len(inner) > 0 && string(inner) != "null" {
		return inner
	}
	return body
}

func extractAPIErrorBody(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	for _, key := range []string{"error", "detail", "message"} {
		if msg, ok := parseErrorValue(payload[key]); ok {
			return msg, true
		}
	}
	return "", false
}

func parseErrorValue(raw any) (string, bool) {
	switch value := raw.(type) {
	case string:
		msg := strings.TrimSpace(value)
		if msg == "" {
			return "", false
		}
		return msg, true
	case map[string]any:
		if nested, ok := parseErrorValue(value["error"]); ok {
			return nested, true
		}
		code, _ := value["code"].(string)
		message, _ := value["message"].(string)
		return formatAPIError(code, message)
	}
	return "", false
}

func formatAPIError(code, message string) (string, bool) {
	code = strings.TrimSpace(code)
	message = strings.TrimSpace(message)
	switch {
	case code != "" && message != "":
		return fmt.Sprintf("%s: %s", code, message), true
	case code != "":
		return code, true
	case message != "":
		return message, true
	default:
		return "", false
	}
}
