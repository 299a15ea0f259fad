// Package remote drives a JIT compiler through an HTTP compiler-control
// agent running inside the target VM.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/ctwgo/internal/backend"
	"resty.dev/v3"
)

// Client implements backend.Backend over HTTP.
type Client struct {
	http *resty.Client
}

type methodRequest struct {
	Method backend.Method `json:"method"`
	Level  int            `json:"level,omitempty"`
}

type initializerRequest struct {
	Class string `json:"class"`
	Level int    `json:"level"`
}

type boolResponse struct {
	Result bool `json:"result"`
}

type levelResponse struct {
	Level int `json:"level"`
}

// New returns a client for the agent at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	res, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("remote %s: %w", path, err)
	}
	if res.IsError() {
		return fmt.Errorf("remote %s: %s: %s", path, res.Status(), res.String())
	}
	return nil
}

// Check implements backend.Backend. A 404 means the agent has no compiler
// management support; 501 means the profile cannot tell.
func (c *Client) Check(ctx context.Context) (backend.Info, error) {
	var info backend.Info
	res, err := c.http.R().SetContext(ctx).SetResult(&info).Get("/v1/info")
	if err != nil {
		return info, fmt.Errorf("remote /v1/info: %w", err)
	}
	switch res.StatusCode() {
	case http.StatusOK:
		return info, nil
	case http.StatusNotFound:
		return info, backend.ErrNoManagement
	case http.StatusNotImplemented:
		return info, backend.ErrProfileUnsupported
	default:
		return info, fmt.Errorf("remote /v1/info: %s", res.Status())
	}
}

// IsCompilable implements backend.Backend.
func (c *Client) IsCompilable(ctx context.Context, m backend.Method, level int) (bool, error) {
	var out boolResponse
	err := c.post(ctx, "/v1/compilable", methodRequest{Method: m, Level: level}, &out)
	return out.Result, err
}

// Enqueue implements backend.Backend.
func (c *Client) Enqueue(ctx context.Context, m backend.Method, level int) (bool, error) {
	var out boolResponse
	err := c.post(ctx, "/v1/enqueue", methodRequest{Method: m, Level: level}, &out)
	return out.Result, err
}

// EnqueueInitializer implements backend.Backend.
func (c *Client) EnqueueInitializer(ctx context.Context, class string, level int) error {
	return c.post(ctx, "/v1/initializer", initializerRequest{Class: class, Level: level}, nil)
}

// IsQueued implements backend.Backend.
func (c *Client) IsQueued(ctx context.Context, m backend.Method) (bool, error) {
	var out boolResponse
	err := c.post(ctx, "/v1/queued", methodRequest{Method: m}, &out)
	return out.Result, err
}

// Level implements backend.Backend.
func (c *Client) Level(ctx context.Context, m backend.Method) (int, error) {
	var out levelResponse
	err := c.post(ctx, "/v1/level", methodRequest{Method: m}, &out)
	return out.Level, err
}

// Deoptimize implements backend.Backend.
func (c *Client) Deoptimize(ctx context.Context, m backend.Method) error {
	return c.post(ctx, "/v1/deoptimize", methodRequest{Method: m}, nil)
}

// DeoptimizeAll implements backend.Backend.
func (c *Client) DeoptimizeAll(ctx context.Context) error {
	return c.post(ctx, "/v1/deoptimize-all", nil, nil)
}
