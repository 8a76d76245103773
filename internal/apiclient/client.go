// Package apiclient talks to the platform REST API that owns every record the
// console lists and mutates.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/session"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/middleware/requestid"
)

const maxBodyBytes = 10 << 20

// Upstream call outcomes reported to the Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNetwork  = "network_error"
)

// Recorder observes upstream calls.
type Recorder interface {
	ObserveUpstreamCall(endpoint, outcome string, duration time.Duration)
}

// Client is a thin REST client for the platform API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	metrics Recorder
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

// New constructs a client for baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// envelope is the platform's response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body interface{}) (*envelope, error) {
	start := time.Now()
	env, outcome, err := c.send(ctx, method, path, query, body)
	if c.metrics != nil {
		c.metrics.ObserveUpstreamCall(endpoint, outcome, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("upstream call failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.String("outcome", outcome),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err),
		)
	}
	return env, err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}) (*envelope, string, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, OutcomeRejected, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, OutcomeNetwork, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build upstream request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess, ok := session.FromContext(ctx); ok && sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, OutcomeNetwork, appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, "Network error. Please check your connection and try again.")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, OutcomeNetwork, appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, "read upstream response")
	}

	env := &envelope{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, env); err != nil {
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, OutcomeRejected, rejection(resp.StatusCode, http.StatusText(resp.StatusCode))
			}
			c.logger.Warn("malformed upstream body", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Error(err))
			env = &envelope{}
		}
	}

	if resp.StatusCode >= http.StatusBadRequest || (env.Success != nil && !*env.Success) {
		message := env.message()
		if message == "" {
			message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return nil, OutcomeRejected, rejection(resp.StatusCode, message)
	}
	return env, OutcomeOK, nil
}

// rejection maps an upstream refusal to a typed error carrying the upstream
// message verbatim.
func rejection(status int, message string) *appErrors.Error {
	var base *appErrors.Error
	switch {
	case status == http.StatusUnauthorized:
		base = appErrors.ErrUnauthorized
	case status == http.StatusForbidden:
		base = appErrors.ErrForbidden
	case status == http.StatusNotFound:
		base = appErrors.ErrNotFound
	case status == http.StatusConflict:
		base = appErrors.ErrConflict
	case status >= http.StatusInternalServerError:
		base = appErrors.ErrUpstream
	default:
		base = appErrors.ErrValidation
	}
	return appErrors.Clone(base, message)
}

// fetchList issues a GET and decodes data as a list of T. An object becomes a
// one-element list; absent or malformed data becomes an empty list; elements
// that fail to decode are skipped. Data is only read from replies that carry
// success:true.
func fetchList[T any](ctx context.Context, c *Client, endpoint, path string, query url.Values) ([]T, error) {
	env, err := c.do(ctx, endpoint, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With(zap.String("endpoint", endpoint))
	if env.Success == nil {
		logger.Warn("upstream reply without success flag, ignoring data", zap.Int("bytes", len(env.Data)))
		return []T{}, nil
	}
	return decodeList[T](logger, env.Data), nil
}

func decodeList[T any](logger *zap.Logger, data json.RawMessage) []T {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []T{}
	}

	switch data[0] {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(data, &elements); err != nil {
			logger.Warn("malformed list payload", zap.Error(err))
			return []T{}
		}
		out := make([]T, 0, len(elements))
		for i, element := range elements {
			var record T
			if err := json.Unmarshal(element, &record); err != nil {
				logger.Warn("skipping malformed record", zap.Int("index", i), zap.Error(err))
				continue
			}
			out = append(out, record)
		}
		return out
	case '{':
		var record T
		if err := json.Unmarshal(data, &record); err != nil {
			logger.Warn("malformed record payload", zap.Error(err))
			return []T{}
		}
		return []T{record}
	default:
		logger.Warn("unexpected data payload", zap.Int("bytes", len(data)))
		return []T{}
	}
}

// mutate issues a write and discards the response data.
func (c *Client) mutate(ctx context.Context, endpoint, method, path string, query url.Values, body interface{}) error {
	_, err := c.do(ctx, endpoint, method, path, query, body)
	return err
}

// Ping checks that the platform API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, appErrors.ErrNetwork.Message)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return errors.New("upstream unhealthy: " + resp.Status)
	}
	return nil
}

func recordPath(collection, id string, suffix ...string) string {
	parts := append([]string{"", collection, url.PathEscape(id)}, suffix...)
	return strings.Join(parts, "/")
}
