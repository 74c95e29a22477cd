package clients

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ajitpratap0/tap-monday/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-monday/pkg/json"
	"github.com/ajitpratap0/tap-monday/pkg/logger"
	"github.com/ajitpratap0/tap-monday/pkg/metrics"
	"github.com/ajitpratap0/tap-monday/pkg/observability"
)

const (
	maxResponseBytes = 32 << 20
	maxErrorSnippet  = 256
)

// GraphQLConfig configures a GraphQLClient
type GraphQLConfig struct {
	URL        string
	Token      string
	APIVersion string
	UserAgent  string

	HTTP        *HTTPConfig
	RateLimiter RateLimiter
	// HTTPClient overrides the client built from HTTP
	HTTPClient *http.Client
}

// GraphQLError is a single entry of a GraphQL errors array
type GraphQLError struct {
	Message string `json:"message"`
}

// GraphQLResponse is the envelope returned by a GraphQL endpoint.
// ErrorMessage and ErrorCode carry vendor errors reported outside the errors array.
type GraphQLResponse struct {
	Data         map[string]interface{} `json:"data"`
	Errors       []GraphQLError         `json:"errors"`
	ErrorMessage string                 `json:"error_message"`
	ErrorCode    string                 `json:"error_code"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// ClientStats reports request counters
type ClientStats struct {
	TotalRequests  int64            `json:"total_requests"`
	FailedRequests int64            `json:"failed_requests"`
	RateLimiter    RateLimiterStats `json:"rate_limiter"`
}

// GraphQLClient sends authenticated GraphQL queries over HTTP POST.
type GraphQLClient struct {
	config     *GraphQLConfig
	logger     *zap.Logger
	httpClient *http.Client
	token      *oauth2.Token
	limiter    RateLimiter
	tracer     *observability.ConnectorTracer

	totalRequests  int64
	failedRequests int64
}

// NewGraphQLClient validates cfg and builds a client. It never touches the network.
func NewGraphQLClient(cfg *GraphQLConfig, logger *zap.Logger) (*GraphQLClient, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "graphql client config is required")
	}
	if cfg.Token == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "auth token is required")
	}
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "api url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.HTTP, logger)
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = NewRateLimiter(0, 1)
	}

	return &GraphQLClient{
		config:     cfg,
		logger:     logger.With(zap.String("component", "graphql_client")),
		httpClient: httpClient,
		token:      &oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"},
		limiter:    limiter,
		tracer:     observability.NewConnectorTracer("client", "graphql"),
	}, nil
}

// NewRequest builds the POST request for query. The body is
// {"query": ..., "variables": ...} and the token goes into Authorization.
func (c *GraphQLClient) NewRequest(ctx context.Context, query string, variables map[string]interface{}) (*http.Request, error) {
	body, err := jsonpool.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create request")
	}

	c.token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIVersion != "" {
		req.Header.Set("API-Version", c.config.APIVersion)
	}
	return req, nil
}

// Query runs one GraphQL request and decodes the envelope into out.
// A non-success status, a transport failure or a non-empty errors array is
// returned as an error; nothing is retried.
func (c *GraphQLClient) Query(ctx context.Context, operation, query string, variables map[string]interface{}, out *GraphQLResponse) error {
	attrs := []attribute.KeyValue{attribute.String("graphql.operation", operation)}
	if page, ok := variables["page"].(int); ok {
		attrs = append(attrs, attribute.Int("graphql.page", page))
	}
	return c.tracer.Trace(ctx, "query", func(ctx context.Context) error {
		err := c.query(ctx, operation, query, variables, out)
		if err != nil {
			atomic.AddInt64(&c.failedRequests, 1)
		}
		return err
	}, attrs...)
}

func (c *GraphQLClient) query(ctx context.Context, operation, query string, variables map[string]interface{}, out *GraphQLResponse) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "rate limiter wait interrupted")
	}

	req, err := c.NewRequest(ctx, query, variables)
	if err != nil {
		return err
	}

	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewTimer()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RequestDuration.WithLabelValues(operation, "error").Observe(timer.Stop().Seconds())
		if ctx.Err() != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "request cancelled")
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.RequestDuration.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Observe(timer.Stop().Seconds())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}

	logger.WithContext(ctx, c.logger).Debug("graphql response",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))

	if err := statusError(resp, body); err != nil {
		return err
	}

	*out = GraphQLResponse{}
	if err := jsonpool.UnmarshalUseNumber(body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode response").
			WithDetail("body", snippet(body))
	}

	if len(out.Errors) > 0 {
		messages := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			messages = append(messages, e.Message)
		}
		return errors.Newf(errors.ErrorTypeConnection, "graphql errors: %s", strings.Join(messages, "; ")).
			WithDetail("status", resp.StatusCode)
	}
	if out.ErrorMessage != "" || out.ErrorCode != "" {
		errType := errors.ErrorTypeConnection
		if out.ErrorCode == "ComplexityException" || out.ErrorCode == "RateLimitExceeded" {
			errType = errors.ErrorTypeRateLimit
		}
		return errors.Newf(errType, "api error %s: %s", out.ErrorCode, out.ErrorMessage).
			WithDetail("error_code", out.ErrorCode)
	}
	return nil
}

// statusError maps non-success HTTP statuses to typed errors
func statusError(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errType errors.ErrorType
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = errors.ErrorTypeAuthentication
	case http.StatusTooManyRequests:
		errType = errors.ErrorTypeRateLimit
	default:
		errType = errors.ErrorTypeConnection
	}

	err := errors.Newf(errType, "api returned status %d: %s", resp.StatusCode, snippet(body)).
		WithDetail("status", resp.StatusCode)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, convErr := strconv.Atoi(ra); convErr == nil {
			err = err.WithDetail("retry_after", time.Duration(secs)*time.Second)
		}
	}
	return err
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "..."
	}
	return s
}

// Stats returns request counters
func (c *GraphQLClient) Stats() ClientStats {
	return ClientStats{
		TotalRequests:  atomic.LoadInt64(&c.totalRequests),
		FailedRequests: atomic.LoadInt64(&c.failedRequests),
		RateLimiter:    c.limiter.GetStats(),
	}
}

// Close releases idle connections
func (c *GraphQLClient) Close() {
	c.httpClient.CloseIdleConnections()
}
