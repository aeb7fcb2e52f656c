package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
)

const DefaultTimeout = 10 * time.Second

// Resolver finds the base URL of a named service.
type Resolver interface {
	ServiceURL(ctx context.Context, name string) (string, error)
}

// StaticURL resolves every service to the same base URL.
type StaticURL string

func (s StaticURL) ServiceURL(context.Context, string) (string, error) { return string(s), nil }

// envelope is the success body every service writes.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// errorBody is the failure body every service writes.
type errorBody struct {
	Status   int               `json:"status"`
	Message  string            `json:"message"`
	Category apperror.Category `json:"category"`
}

type baseClient struct {
	service    string
	resolver   Resolver
	httpClient *http.Client
	logger     *zap.Logger
	// known maps remote error messages back to local sentinels
	known []*apperror.Error
}

func newBaseClient(service string, resolver Resolver, timeout time.Duration, logger *zap.Logger, known ...*apperror.Error) baseClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return baseClient{
		service:  service,
		resolver: resolver,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		known:  known,
	}
}

// do sends body as JSON and decodes the envelope's data into out (when out is non-nil).
// Transport failures become UpstreamUnavailable; error bodies are rebuilt into typed errors.
func (c *baseClient) do(ctx context.Context, method, path string, body, out any) error {
	baseURL, err := c.resolver.ServiceURL(ctx, c.service)
	if err != nil {
		return apperror.Upstream(c.service+" has no known address", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("❌ Upstream call failed", zap.String("service", c.service), zap.String("path", path), zap.Error(err))
		return apperror.Upstream("failed to call "+c.service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.Upstream("failed to read "+c.service+" response", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return c.remoteError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperror.Internal("failed to decode "+c.service+" response", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperror.Internal("failed to decode "+c.service+" data", err)
	}
	return nil
}

func (c *baseClient) remoteError(status int, raw []byte) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Category == "" {
		if status >= http.StatusInternalServerError {
			return apperror.Upstream(fmt.Sprintf("%s returned status %d", c.service, status), nil)
		}
		return apperror.New(apperror.CategoryInternal, fmt.Sprintf("%s returned status %d", c.service, status))
	}

	for _, sentinel := range c.known {
		if sentinel.Category() == body.Category && strings.HasSuffix(body.Message, sentinel.Msg) {
			return fmt.Errorf("%s: %w", c.service, sentinel)
		}
	}
	return apperror.New(body.Category, c.service+": "+body.Message)
}
