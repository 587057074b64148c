// Package gateway is the HTTP client for the remote task API.
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

	"tasksync/internal/models"
)

// Gateway performs CRUD against the remote task API.
type Gateway interface {
	List(ctx context.Context, opts ListOptions) ([]models.Task, error)
	Get(ctx context.Context, id string) (models.Task, error)
	Create(ctx context.Context, task models.NewTask) (models.Task, error)
	Update(ctx context.Context, id string, changes models.TaskUpdate) (models.Task, error)
	Delete(ctx context.Context, id string) error
}

// ListOptions pages a List call. Zero values are not sent.
type ListOptions struct {
	Limit  int
	Offset int
}

var (
	// ErrNotFound is matched by a 404 response.
	ErrNotFound = errors.New("task not found")
	// ErrTransport wraps failures that never produced an HTTP response.
	ErrTransport = errors.New("transport failure")
)

// Error is a non-2xx response from the task API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("task api: %d %s", e.StatusCode, e.Message)
}

// Is lets a 404 match ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Temporary reports whether a retry may succeed.
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Retryable reports whether err is a transport failure or a temporary API error.
func Retryable(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// Client is an HTTP implementation of Gateway.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a client for the tasks collection at baseURL,
// e.g. http://localhost:5000/api/tasks.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Tasks []models.Task `json:"tasks"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// List fetches every active task.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]models.Task, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	target := c.baseURL
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, target, nil, &resp); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if resp.Tasks == nil {
		resp.Tasks = []models.Task{}
	}
	return resp.Tasks, nil
}

// Get fetches a single task.
func (c *Client) Get(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, c.taskURL(id), nil, &task); err != nil {
		return models.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// Create posts a new task and returns the server's canonical record.
func (c *Client) Create(ctx context.Context, task models.NewTask) (models.Task, error) {
	var created models.Task
	if err := c.do(ctx, http.MethodPost, c.baseURL, task, &created); err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

// Update sends a partial update and returns the full updated record.
func (c *Client) Update(ctx context.Context, id string, changes models.TaskUpdate) (models.Task, error) {
	var updated models.Task
	if err := c.do(ctx, http.MethodPut, c.taskURL(id), changes, &updated); err != nil {
		return models.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	return updated, nil
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, c.taskURL(id), nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (c *Client) taskURL(id string) string {
	return c.baseURL + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload errorResponse
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
			if apiErr.Message == "" {
				apiErr.Message = payload.Message
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
