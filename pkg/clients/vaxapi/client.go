// Package vaxapi is the REST client the storefront and the console use to talk to the
// ordering backend.
package vaxapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const csrfHeader = "X-CSRFToken"

// Client calls the backend API. Token and OnUnauthorized hooks connect it to the session.
type Client struct {
	http           *resty.Client
	token          func() string
	onUnauthorized func()
	logger         *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for failed calls.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithTokenSource supplies the API token sent as "Authorization: Token <key>".
func WithTokenSource(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// WithUnauthorizedHandler is called whenever a request fails authentication.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New builds a client for the backend at baseURL (without the /api suffix).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")+"/api").
			SetHeader("Accept", "application/json").
			SetTimeout(15 * time.Second),
		token:  func() string { return "" },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Image is a file attached to a multipart create or update.
type Image struct {
	Filename string
	Body     io.Reader
}

type call struct {
	method string
	path   string
	query  map[string]string
	body   any
	// auth marks endpoints that cannot be called anonymously.
	auth bool
	// anonymous skips the token, for the calls that establish a session.
	anonymous bool
	csrf      bool
	form      map[string]string
	image     *Image
}

func (c *Client) do(ctx context.Context, in call, out any) error {
	token := ""
	if !in.anonymous {
		token = c.token()
	}
	if in.auth && token == "" {
		c.unauthorized()
		return ErrUnauthorized
	}

	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetHeader("Authorization", "Token "+token)
	}
	if len(in.query) > 0 {
		req.SetQueryParams(in.query)
	}
	if in.csrf {
		csrf, err := c.CSRF(ctx)
		if err != nil {
			return err
		}
		req.SetHeader(csrfHeader, csrf)
	}
	switch {
	case in.form != nil:
		req.SetMultipartFormData(in.form)
		if in.image != nil && in.image.Body != nil {
			req.SetFileReader("image", in.image.Filename, in.image.Body)
		}
	case in.body != nil:
		req.SetHeader("Content-Type", "application/json").SetBody(in.body)
	}

	payload := map[string]any{}
	req.SetError(&payload)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(in.method, in.path)
	if resp != nil && resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(resp.StatusCode(), payload)}
		c.logger.Warn("api call failed",
			zap.String("method", in.method),
			zap.String("endpoint", in.path),
			zap.Int("status", apiErr.StatusCode),
			zap.String("message", apiErr.Message))
		if apiErr.StatusCode == http.StatusUnauthorized {
			c.unauthorized()
		}
		return apiErr
	}
	if err != nil {
		return fmt.Errorf("vaxapi: %s %s: %w", in.method, in.path, err)
	}
	return nil
}

func (c *Client) unauthorized() {
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}
