// Package client is an in-process browser-like HTTP client. Requests are
// dispatched straight into an http.Handler; cookies persist between
// requests in a jar, and basic-auth credentials are attached to every
// request when configured.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
)

// DefaultBaseURL is the origin requests are issued against.
const DefaultBaseURL = "http://localhost"

// Authentication selects how MakeClient-style builders authenticate.
// It is one of NoAuth, DefaultAuth or Credentials.
type Authentication interface {
	isAuthentication()
}

type noAuth struct{}

func (noAuth) isAuthentication() {}

type defaultAuth struct{}

func (defaultAuth) isAuthentication() {}

var (
	// NoAuth issues unauthenticated requests.
	NoAuth Authentication = noAuth{}
	// DefaultAuth uses the credentials configured in webtest.authentication.
	DefaultAuth Authentication = defaultAuth{}
)

// Credentials is an explicit basic-auth pair.
type Credentials struct {
	Username string
	Password string
}

func (Credentials) isAuthentication() {}

// IsDefault reports whether a is DefaultAuth.
func IsDefault(a Authentication) bool {
	_, ok := a.(defaultAuth)
	return ok
}

// Response is a completed response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccessful reports a 2xx status.
func (r *Response) IsSuccessful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect reports a 3xx status with a Location header.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400 && r.Header.Get("Location") != ""
}

// Content returns the body as a string.
func (r *Response) Content() string { return string(r.Body) }

// ContentType returns the media type of the Content-Type header.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// Client dispatches requests to a handler.
type Client struct {
	handler http.Handler
	base    *url.URL
	jar     http.CookieJar
	auth    *Credentials
	headers http.Header

	last *Response
}

// Option configures a Client.
type Option func(*Client) error

// WithBasicAuth attaches credentials to every request.
func WithBasicAuth(c Credentials) Option {
	return func(cl *Client) error {
		cl.auth = &c
		return nil
	}
}

// WithBaseURL changes the request origin.
func WithBaseURL(raw string) Option {
	return func(cl *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		cl.base = u
		return nil
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) error {
		cl.headers.Add(key, value)
		return nil
	}
}

// New returns a client bound to handler.
func New(handler http.Handler, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{handler: handler, base: base, jar: jar, headers: make(http.Header)}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Credentials returns the basic-auth credentials, or nil.
func (c *Client) Credentials() *Credentials { return c.auth }

// SetCookie stores a cookie for the client's origin.
func (c *Client) SetCookie(cookie *http.Cookie) {
	c.jar.SetCookies(c.base, []*http.Cookie{cookie})
}

// Cookie returns the named cookie for the client's origin.
func (c *Client) Cookie(name string) (*http.Cookie, bool) {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck, true
		}
	}
	return nil, false
}

// Response returns the last response, or nil before the first request.
func (c *Client) Response() *Response { return c.last }

func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	return c.base.ResolveReference(ref), nil
}

// Request dispatches method path with an optional body and returns the
// response. Redirects are not followed.
func (c *Client) Request(ctx context.Context, method, path string, body io.Reader) (*Response, error) {
	u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.RemoteAddr = "127.0.0.1:0"
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.auth != nil {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}
	for _, ck := range c.jar.Cookies(u) {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	result := rec.Result()
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if cookies := result.Cookies(); len(cookies) > 0 {
		c.jar.SetCookies(u, cookies)
	}

	c.last = &Response{StatusCode: result.StatusCode, Header: result.Header, Body: data}
	return c.last, nil
}

// Get is Request with GET and no body.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil)
}

// PostForm submits form values.
func (c *Client) PostForm(ctx context.Context, path string, values url.Values) (*Response, error) {
	c.headers.Set("Content-Type", "application/x-www-form-urlencoded")
	defer c.headers.Del("Content-Type")
	return c.Request(ctx, http.MethodPost, path, strings.NewReader(values.Encode()))
}

// FollowRedirect issues a GET to the last response's Location.
func (c *Client) FollowRedirect(ctx context.Context) (*Response, error) {
	if c.last == nil || !c.last.IsRedirect() {
		return nil, fmt.Errorf("client: last response is not a redirect")
	}
	return c.Get(ctx, c.last.Header.Get("Location"))
}

// Crawl issues a request and parses the response body.
func (c *Client) Crawl(ctx context.Context, method, path string) (*Document, *Response, error) {
	resp, err := c.Request(ctx, method, path, nil)
	if err != nil {
		return nil, nil, err
	}
	ct := resp.ContentType()
	if ct == "" {
		ct = "text/html"
	}
	doc, err := ParseDocument(resp.Body, ct)
	if err != nil {
		return nil, resp, err
	}
	return doc, resp, nil
}
