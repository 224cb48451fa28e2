package webtest

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/webtest/internal/client"
)

// DefaultContentType is the type response bodies are parsed as when
// building failure labels.
const DefaultContentType = "text/html"

// Label describes resp for assertion messages: the document title when
// the body has one, otherwise "[<status>] - <body>". A body that fails to
// parse gets the parse error appended.
func Label(resp *client.Response, contentType string) string {
	raw := fmt.Sprintf("[%d] - %s", resp.StatusCode, resp.Content())
	doc, err := client.ParseDocument(resp.Body, contentType)
	if err != nil {
		// Keep status and body next to the parse error; the error alone says
		// nothing about the response.
		return fmt.Sprintf("%s (%v)", raw, err)
	}
	if title, ok := doc.Title(); ok {
		return title
	}
	return raw
}

// IsSuccessful asserts that resp is (or, with success=false, is not) a
// 2xx response. The body is parsed as contentType, text/html by default,
// only to label the failure.
func IsSuccessful(t assert.TestingT, resp *client.Response, success bool, contentType ...string) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	ct := DefaultContentType
	if len(contentType) > 0 && contentType[0] != "" {
		ct = contentType[0]
	}
	if success {
		if resp.IsSuccessful() {
			return true
		}
		return assert.Fail(t, "The Response was not successful: "+Label(resp, ct))
	}
	if !resp.IsSuccessful() {
		return true
	}
	return assert.Fail(t, "The Response was successful: "+Label(resp, ct))
}

// IsSuccessful asserts on resp through the test case's test.
func (tc *TestCase) IsSuccessful(resp *client.Response, success bool, contentType ...string) bool {
	tc.t.Helper()
	return IsSuccessful(tc.t, resp, success, contentType...)
}

// FetchOption configures FetchContent and FetchCrawler.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	method  string
	auth    client.Authentication
	success bool
	skip    bool
}

// WithMethod sets the request method. GET by default.
func WithMethod(method string) FetchOption {
	return func(o *fetchOptions) { o.method = method }
}

// WithAuthentication selects the client's basic-auth credentials.
func WithAuthentication(auth client.Authentication) FetchOption {
	return func(o *fetchOptions) { o.auth = auth }
}

// WithExpectSuccess sets the expected outcome. Responses are expected to
// succeed by default.
func WithExpectSuccess(success bool) FetchOption {
	return func(o *fetchOptions) { o.success = success }
}

// SkipSuccessCheck makes FetchContent return the body without asserting on
// the status. It wins over WithExpectSuccess in any order.
func SkipSuccessCheck() FetchOption {
	return func(o *fetchOptions) { o.skip = true }
}

func newFetchOptions(opts []FetchOption) fetchOptions {
	o := fetchOptions{method: http.MethodGet, auth: client.NoAuth, success: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FetchContent requests path with a new client and returns the body,
// asserting on the outcome unless SkipSuccessCheck is given.
func (tc *TestCase) FetchContent(path string, opts ...FetchOption) string {
	tc.t.Helper()
	o := newFetchOptions(opts)
	cl, err := tc.MakeClient(o.auth)
	require.NoError(tc.t, err, "make client")

	resp, err := cl.Request(tc.ctx, o.method, path, nil)
	require.NoError(tc.t, err, "request %s %s", o.method, path)
	if !o.skip {
		tc.IsSuccessful(resp, o.success)
	}
	return resp.Content()
}

// FetchCrawler requests path with a new client, asserts on the outcome and
// returns the parsed document. The success check always runs.
func (tc *TestCase) FetchCrawler(path string, opts ...FetchOption) *client.Document {
	tc.t.Helper()
	o := newFetchOptions(opts)
	cl, err := tc.MakeClient(o.auth)
	require.NoError(tc.t, err, "make client")

	doc, resp, err := cl.Crawl(tc.ctx, o.method, path)
	if resp != nil {
		tc.IsSuccessful(resp, o.success)
	}
	require.NoError(tc.t, err, "crawl %s %s", o.method, path)
	return doc
}

// AssertGolden compares body with testdata/golden/<name>.golden.
func (tc *TestCase) AssertGolden(name string, body []byte) {
	tc.t.Helper()
	AssertGolden(tc.t, name, body)
}

// AssertGolden compares body with testdata/golden/<name>.golden.
func AssertGolden(t testing.TB, name string, body []byte) {
	t.Helper()
	tt, ok := t.(*testing.T)
	if !ok {
		t.Fatalf("golden comparison needs *testing.T, got %T", t)
		return
	}
	g := goldie.New(tt,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(tt, name, body)
}
