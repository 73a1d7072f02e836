// Package api is the HTTP client for the GitHub-integration backend.
// Every call is a single attempt against the configured base URL with the session
// cookie attached; responses are decoded into the backend's uniform envelope.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h0rv/ghsync/internal/domain"
	"golang.org/x/net/publicsuffix"
)

// RequestIDHeader carries a fresh UUID on every request.
const RequestIDHeader = "X-Request-ID"

// Options configures a Client.
type Options struct {
	BaseURL    string
	CookieName string
	Session    string
	// Timeout bounds each request; 0 disables it.
	Timeout   time.Duration
	Logger    *slog.Logger
	Transport http.RoundTripper
}

// Client talks to the backend REST API.
type Client struct {
	http       *http.Client
	base       *url.URL
	cookieName string
	logger     *slog.Logger
}

// New creates a client for opts.BaseURL, seeding the cookie jar with opts.Session.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.CookieName
	if name == "" {
		name = "connect.sid"
	}

	c := &Client{
		http: &http.Client{
			Jar:       jar,
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		base:       base,
		cookieName: name,
		logger:     logger.With("component", "api"),
	}
	if opts.Session != "" {
		c.SetSession(opts.Session)
	}
	return c, nil
}

// BaseURL returns the base URL all paths are resolved against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// SetSession replaces the session cookie. An empty value removes it.
func (c *Client) SetSession(value string) {
	cookie := &http.Cookie{Name: c.cookieName, Value: value, Path: "/"}
	if value == "" {
		cookie.MaxAge = -1
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{cookie})
}

// Session returns the session cookie currently in the jar.
func (c *Client) Session() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == c.cookieName {
			return ck.Value
		}
	}
	return ""
}

// Params is a query string. Empty values are never sent.
type Params map[string]string

// SetInt sets key to n when n is positive.
func (p Params) SetInt(key string, n int) {
	if n > 0 {
		p[key] = strconv.Itoa(n)
	}
}

// Encode renders the non-empty pairs sorted by key.
func (p Params) Encode() string {
	v := url.Values{}
	for k, val := range p {
		if strings.TrimSpace(val) == "" {
			continue
		}
		v.Set(k, val)
	}
	return v.Encode()
}

// url joins the escaped path onto the base. Dynamic segments must already be
// escaped with url.PathEscape.
func (c *Client) url(path string, params Params) string {
	u := *c.base
	raw := strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path, u.RawPath = p, raw
	} else {
		u.Path, u.RawPath = raw, ""
	}
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) send(ctx context.Context, method, path string, params Params, body any, accept string) (*http.Response, error) {
	target := c.url(path, params)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))
	return resp, nil
}

// Do issues one request and decodes the response envelope. params with empty
// values are dropped; body is JSON-encoded when non-nil.
//
// Bodies without a top-level "success" field (bare arrays, legacy objects) are
// wrapped as a successful envelope whose data is the whole body. A success=false
// envelope is returned without error; use Envelope.Err to check it.
func (c *Client) Do(ctx context.Context, method, path string, params Params, body any) (*domain.Envelope[json.RawMessage], error) {
	resp, err := c.send(ctx, method, path, params, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: resp.Request.URL.String(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, raw)
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		c.logger.Warn("undecodable response", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !env.Success {
		c.logger.Warn("backend reported failure", "method", method, "path", path, "reason", env.Reason())
	}
	return env, nil
}

func decodeEnvelope(raw []byte) (*domain.Envelope[json.RawMessage], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &domain.Envelope[json.RawMessage]{Success: true}, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrShape)
	}
	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrShape, err)
		}
		if _, ok := probe["success"]; ok {
			var env domain.Envelope[json.RawMessage]
			if err := json.Unmarshal(trimmed, &env); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrShape, err)
			}
			return &env, nil
		}
	}
	data := json.RawMessage(trimmed)
	return &domain.Envelope[json.RawMessage]{Success: true, Data: &data}, nil
}

// data runs Do and returns the payload, turning success=false into a *domain.SoftError.
func (c *Client) data(ctx context.Context, method, path string, params Params, body any) (json.RawMessage, error) {
	env, err := c.Do(ctx, method, path, params, body)
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	raw, _ := env.Value()
	return raw, nil
}

// decodeData unmarshals a payload into T, reporting mismatches as ErrShape.
func decodeData[T any](raw json.RawMessage, what string) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, fmt.Errorf("%w: %s: no data", ErrShape, what)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrShape, what, err)
	}
	return v, nil
}

// Download streams a binary response body into w and returns its content type.
func (c *Client) Download(ctx context.Context, path string, params Params, w io.Writer) (string, int64, error) {
	resp, err := c.send(ctx, http.MethodGet, path, params, nil, "*/*")
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", 0, newStatusError(resp.StatusCode, raw)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", n, &TransportError{Method: http.MethodGet, URL: resp.Request.URL.String(), Err: err}
	}
	return resp.Header.Get("Content-Type"), n, nil
}
