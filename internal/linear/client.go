// Package linear is a minimal GraphQL client for the Linear API covering
// the project list query and the project rename mutation.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/projindex/internal/config"
	"github.com/fyrsmithlabs/projindex/internal/logging"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 << 20

// Errors returned by the client.
var (
	ErrUnauthorized       = errors.New("linear: authentication failed")
	ErrGraphQL            = errors.New("linear: graphql error")
	ErrUnexpectedStatus   = errors.New("linear: unexpected status")
	ErrMalformedResponse  = errors.New("linear: malformed response")
	ErrRenameNotConfirmed = errors.New("linear: rename not confirmed")
)

// IsRejected reports whether err means the API refused an operation, so
// it was certainly not applied. Transport failures, timeouts, 5xx statuses
// and unreadable responses leave the outcome unknown and report false.
func IsRejected(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrGraphQL) ||
		errors.Is(err, ErrRenameNotConfirmed)
}

// Client talks to the Linear GraphQL endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	transport  *http.Transport
	limiter    *rate.Limiter
	pageSize   int
	maxPages   int
	logger     *logging.Logger
}

// NewClient creates a client with the configured authentication scheme.
//
// Personal API keys are sent verbatim in the Authorization header; OAuth
// access tokens are sent as bearer tokens through golang.org/x/oauth2.
// The key is not validated here; an invalid or missing key surfaces as
// ErrUnauthorized from the first call.
func NewClient(ctx context.Context, cfg config.LinearConfig, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	base := &http.Client{Transport: transport}

	var httpClient *http.Client
	switch cfg.AuthScheme {
	case config.AuthSchemeAPIKey, "":
		httpClient = &http.Client{Transport: &apiKeyTransport{key: cfg.APIKey, base: transport}}
	case config.AuthSchemeOAuth:
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey.Value(), TokenType: "Bearer"})
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	default:
		return nil, fmt.Errorf("unsupported auth scheme %q", cfg.AuthScheme)
	}
	httpClient.Timeout = cfg.Timeout.Duration()

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		transport:  transport,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		pageSize:   pageSize,
		maxPages:   cfg.MaxPages,
		logger:     logger.Named("linear"),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// apiKeyTransport sets the raw API key as the Authorization header.
type apiKeyTransport struct {
	key  config.Secret
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.key.IsSet() {
		req.Header.Set("Authorization", t.key.Value())
	}
	return t.base.RoundTrip(req)
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// do executes one GraphQL operation and decodes its data into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("linear request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Trace(ctx, "graphql round trip",
		zap.Int("status", resp.StatusCode),
		zap.Int("request_bytes", len(body)),
		zap.Int("response_bytes", len(respBody)),
	)

	var gr graphQLResponse
	decodeErr := json.Unmarshal(respBody, &gr)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if decodeErr == nil && len(gr.Errors) > 0 {
		return graphQLErrors(gr.Errors)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(string(respBody), 200))
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}

	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// graphQLErrors folds an errors array into one error, classifying
// authentication failures as ErrUnauthorized.
func graphQLErrors(errs []GraphQLError) error {
	msgs := make([]string, 0, len(errs))
	sentinel := ErrGraphQL
	for _, e := range errs {
		msgs = append(msgs, e.Message)
		if e.code() == "AUTHENTICATION_ERROR" {
			sentinel = ErrUnauthorized
		}
	}
	return fmt.Errorf("%w: %s", sentinel, strings.Join(msgs, "; "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
