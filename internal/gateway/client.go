package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/internal/storage/models"
	"github.com/aws-agent/console/pkg/circuitbreaker"
	"github.com/aws-agent/console/pkg/logger"
	"github.com/aws-agent/console/pkg/retry"
)

// TokenSource supplies the bearer credential for mutating calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// ListParams selects one page of a list. Tags are sent as one comma-joined parameter.
type ListParams struct {
	Cursor string
	Limit  int
	Search string
	Tags   []string
}

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	CountingLimit int
	Retry         retry.Config
	Breaker       circuitbreaker.Config
}

type Client struct {
	baseURL       string
	countingLimit int
	httpClient    *http.Client
	tokens        TokenSource
	retry         retry.Config
	breaker       *circuitbreaker.CircuitBreaker
	log           *zap.Logger
}

func NewClient(cfg Config, tokens TokenSource) *Client {
	log := logger.Named("gateway")

	retryCfg := cfg.Retry
	retryCfg.Retryable = isTemporary
	if retryCfg.Logger == nil {
		retryCfg.Logger = log
	}

	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = countsAgainstBreaker
	if breakerCfg.Logger == nil {
		breakerCfg.Logger = log
	}

	countingLimit := cfg.CountingLimit
	if countingLimit <= 0 {
		countingLimit = 10000
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		countingLimit: countingLimit,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		tokens:        tokens,
		retry:         retryCfg,
		breaker:       circuitbreaker.NewCircuitBreaker("recommendations-backend", breakerCfg),
		log:           log,
	}
}

func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

func (c *Client) ListActive(ctx context.Context, params ListParams) (*models.Page, error) {
	var page models.Page
	err := c.do(ctx, request{
		op:       "list_active",
		method:   http.MethodGet,
		path:     "/recommendations",
		query:    params.values(),
		fallback: "Failed to fetch recommendations",
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ListArchived(ctx context.Context, params ListParams) (*models.Page, error) {
	var page models.Page
	err := c.do(ctx, request{
		op:       "list_archived",
		method:   http.MethodGet,
		path:     "/recommendations/archive",
		query:    params.values(),
		fallback: "Failed to fetch archived recommendations",
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAllForCounting fetches every record matching search in one high-limit request.
func (c *Client) ListAllForCounting(ctx context.Context, search string) ([]models.Recommendation, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.countingLimit))
	if search != "" {
		query.Set("search", search)
	}

	var page models.Page
	err := c.do(ctx, request{
		op:       "list_for_counting",
		method:   http.MethodGet,
		path:     "/recommendations",
		query:    query,
		fallback: "Failed to fetch recommendations for counting",
	}, &page)
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (c *Client) Archive(ctx context.Context, id string) (*models.MutationResult, error) {
	return c.mutate(ctx, "archive", id, "Failed to archive recommendation")
}

func (c *Client) Unarchive(ctx context.Context, id string) (*models.MutationResult, error) {
	return c.mutate(ctx, "unarchive", id, "Failed to unarchive recommendation")
}

func (c *Client) mutate(ctx context.Context, action, id, fallback string) (*models.MutationResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var result models.MutationResult
	err = c.do(ctx, request{
		op:       action,
		method:   http.MethodPost,
		path:     "/recommendations/" + url.PathEscape(id) + "/" + action,
		token:    token,
		fallback: fallback,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, request{
		op:       "login",
		method:   http.MethodPost,
		path:     "/login",
		body:     map[string]string{"username": username, "password": password},
		fallback: "Login failed",
		login:    true,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "Login failed: no token in response"}
	}
	return out.Token, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load session token: %w", err)
	}
	return token, nil
}

func (p ListParams) values() url.Values {
	query := url.Values{}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Cursor != "" {
		query.Set("cursor", p.Cursor)
	}
	if p.Search != "" {
		query.Set("search", p.Search)
	}
	if len(p.Tags) > 0 {
		query.Set("tags", strings.Join(p.Tags, ","))
	}
	return query
}

type request struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	token    string
	fallback string
	login    bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	start := time.Now()

	call := func() error {
		return c.breaker.Execute(ctx, func() error {
			return c.roundTrip(ctx, req, out)
		})
	}

	var err error
	if req.method == http.MethodGet {
		err = retry.Do(ctx, c.retry, call)
	} else {
		err = call()
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		err = transportError(err)
	}

	metrics.GatewayRequestDuration.WithLabelValues(req.op).Observe(time.Since(start).Seconds())
	metrics.GatewayRequestsTotal.WithLabelValues(req.op, outcome(err)).Inc()

	if err != nil {
		c.log.Warn("Backend request failed",
			zap.String("operation", req.op),
			zap.String("path", req.path),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, req request, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("backend base URL not configured")
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.resolve(req.path, req.query), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.method != http.MethodGet {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if req.login {
			return loginError(resp.StatusCode, data)
		}
		return rejection(resp.StatusCode, data, req.fallback)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Malformed response from server (status %d)", resp.StatusCode),
			Err:        err,
		}
	}
	return nil
}

// resolve joins an already escaped path onto the base URL.
func (c *Client) resolve(escapedPath string, query url.Values) string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + escapedPath
	}
	u = u.JoinPath(escapedPath)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func rejection(status int, body []byte, fallback string) error {
	if msg := bodyMessage(body); msg != "" {
		return &APIError{StatusCode: status, Message: msg}
	}
	return &APIError{StatusCode: status, Message: fmt.Sprintf("%s (status %d)", fallback, status)}
}

func loginError(status int, body []byte) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &APIError{StatusCode: status, Message: "Invalid username or password."}
	}
	if msg := bodyMessage(body); msg != "" {
		return &APIError{StatusCode: status, Message: msg}
	}
	if text := http.StatusText(status); text != "" {
		return &APIError{StatusCode: status, Message: text}
	}
	return &APIError{StatusCode: status, Message: fmt.Sprintf("Server error (Status: %d)", status)}
}

func bodyMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.Message)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
