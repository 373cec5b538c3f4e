// Package client implements the HTTP client for the todo backend. Every call
// takes a context that genuinely aborts the underlying request, failures come
// back as classified errors, and an optional circuit breaker guards the
// endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"

	apperrors "github.com/taskdeck/taskdeck/pkg/errors"
	"github.com/taskdeck/taskdeck/pkg/models"
	"github.com/taskdeck/taskdeck/pkg/observability"
)

// TokenSource supplies the bearer token attached to authenticated calls. An
// empty token means the call goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Client is the todo backend client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker
	logger     observability.Logger
	metrics    observability.MetricsClient

	searchCache *expirable.LRU[string, []*models.Task]
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(breaker *gobreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics client.
func WithMetrics(metrics observability.MetricsClient) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithSearchCache memoizes search results for ttl, keyed by query and filter.
func WithSearchCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		c.searchCache = expirable.NewLRU[string, []*models.Task](size, nil, ttl)
	}
}

// NewClient creates a new todo backend client.
func NewClient(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  observability.NewNoopLogger(),
		metrics: observability.NewNoopMetricsClient(),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// ListTasks fetches the user's tasks, optionally filtered.
func (c *Client) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := c.do(ctx, "list", http.MethodGet, "/api/todos", filter.Query(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SearchTasks runs a text search over the user's tasks.
func (c *Client) SearchTasks(ctx context.Context, query string, filter models.TaskFilter) ([]*models.Task, error) {
	key := searchKey(query, filter)
	if c.searchCache != nil {
		if cached, ok := c.searchCache.Get(key); ok {
			c.metrics.IncrementCounter("client_search_cache_hits_total", 1, nil)
			return cached, nil
		}
	}

	params := filter.Query()
	params["q"] = query

	var tasks []*models.Task
	if err := c.do(ctx, "search", http.MethodGet, "/api/todos/search", params, nil, &tasks); err != nil {
		return nil, err
	}

	if c.searchCache != nil {
		c.searchCache.Add(key, tasks)
	}
	return tasks, nil
}

// CreateTask creates a new task.
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, "create", http.MethodPost, "/api/todos", nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a partial update to a task.
func (c *Client) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	var task models.Task
	path := "/api/todos/" + url.PathEscape(id)
	if err := c.do(ctx, "update", http.MethodPut, path, nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ReorderTasks submits a full reordering of the user's tasks.
func (c *Client) ReorderTasks(ctx context.Context, orders []models.TaskOrder) ([]*models.Task, error) {
	var tasks []*models.Task
	req := models.ReorderRequest{TaskOrders: orders}
	if err := c.do(ctx, "reorder", http.MethodPut, "/api/todos/reorder", nil, req, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// DeleteTask deletes a task and returns the deleted record.
func (c *Client) DeleteTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	path := "/api/todos/" + url.PathEscape(id)
	if err := c.do(ctx, "delete", http.MethodDelete, path, nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var auth models.AuthResponse
	if err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", nil, req, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var auth models.AuthResponse
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", nil, req, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Logout invalidates the current token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "me", http.MethodGet, "/api/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// HealthCheck verifies the backend is reachable and responding.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Classify(err, "health")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apperrors.FromResponse("health", resp.StatusCode, "", "")
	}
	return nil
}

// do performs one HTTP round trip: marshal, send, decode envelope, classify.
func (c *Client) do(ctx context.Context, operation, method, path string, query map[string]string, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		values := url.Values{}
		for k, v := range query {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Classify(err, operation)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return apperrors.Classify(err, operation)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		}
	}

	start := time.Now()
	err = c.execute(req, operation, out)
	c.metrics.RecordDuration("client_request_seconds", time.Since(start).Seconds(),
		map[string]string{"operation": operation})
	if err != nil {
		c.metrics.IncrementCounter("client_request_errors_total", 1,
			map[string]string{"operation": operation, "category": string(apperrors.CategoryOf(err))})
	}
	return err
}

// execute runs the request, through the breaker when one is configured.
func (c *Client) execute(req *http.Request, operation string, out interface{}) error {
	if c.breaker == nil {
		return c.roundTrip(req, operation, out)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(req, operation, out)
	})
	if apperrors.Is(err, gobreaker.ErrOpenState) || apperrors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.New(apperrors.CategoryServer, operation,
			"The server is having trouble. Please try again shortly.")
	}
	return err
}

func (c *Client) roundTrip(req *http.Request, operation string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response received: a network-class failure.
		return apperrors.Classify(err, operation)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Classify(err, operation)
	}

	var envelope models.Envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			if resp.StatusCode >= 400 {
				return apperrors.FromResponse(operation, resp.StatusCode, "", "")
			}
			return apperrors.Classify(fmt.Errorf("decode response: %w", err), operation)
		}
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		var message, field string
		if envelope.Error != nil {
			message = envelope.Error.Message
			field = envelope.Error.Field
		}
		status := resp.StatusCode
		if status < 400 {
			// success:false with a 2xx status; treat as unknown.
			status = 0
		}
		ce := apperrors.FromResponse(operation, status, message, field)
		c.logger.Debug("request failed", map[string]interface{}{
			"operation": operation,
			"status":    resp.StatusCode,
			"category":  string(ce.Category),
		})
		return ce
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return apperrors.Classify(fmt.Errorf("decode data: %w", err), operation)
		}
	}
	return nil
}

// searchKey builds a stable cache key from a query and filter.
func searchKey(query string, filter models.TaskFilter) string {
	params := filter.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := "q=" + query
	for _, k := range keys {
		key += "&" + k + "=" + params[k]
	}
	return key
}
