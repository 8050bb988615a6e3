// Package apitest drives a fiber app in-process, without opening a socket,
// and asserts on the responses it produces.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Client issues simulated requests against app.
type Client struct {
	t        testing.TB
	app      *fiber.App
	username string
	password string
}

// New returns a Client bound to t.
func New(t testing.TB, app *fiber.App) *Client {
	t.Helper()
	return &Client{t: t, app: app}
}

// WithUser returns a copy of the client that sends Basic credentials on every request.
func (c *Client) WithUser(username, password string) *Client {
	cp := *c
	cp.username = username
	cp.password = password
	return &cp
}

// Get starts a GET request to path.
func (c *Client) Get(path string) *Request {
	return c.Request(http.MethodGet, path)
}

// Request starts a request with an arbitrary method.
func (c *Client) Request(method, path string) *Request {
	return &Request{
		c:      c,
		method: method,
		path:   path,
		params: url.Values{},
		header: http.Header{},
	}
}

// Request is a request under construction.
type Request struct {
	c      *Client
	method string
	path   string
	params url.Values
	header http.Header
}

// Param adds a query parameter. Values are always text on the wire.
func (r *Request) Param(key, value string) *Request {
	r.params.Add(key, value)
	return r
}

// Header sets a request header.
func (r *Request) Header(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

// Do sends the request and reads the whole response.
func (r *Request) Do() *Result {
	t := r.c.t
	t.Helper()

	target := r.path
	if len(r.params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.params.Encode()
	}

	req := httptest.NewRequest(r.method, target, nil)
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.c.username != "" {
		req.SetBasicAuth(r.c.username, r.c.password)
	}

	resp, err := r.c.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return &Result{t: t, Status: resp.StatusCode, Header: resp.Header, Body: body}
}

// Result is a completed response.
type Result struct {
	t      testing.TB
	Status int
	Header http.Header
	Body   []byte
}

// ExpectStatus asserts the response status code.
func (r *Result) ExpectStatus(code int) *Result {
	r.t.Helper()
	assert.Equal(r.t, code, r.Status, "status code, body: %s", r.Body)
	return r
}

// ExpectBody asserts the exact response body.
func (r *Result) ExpectBody(want string) *Result {
	r.t.Helper()
	assert.Equal(r.t, want, string(r.Body))
	return r
}

// ExpectHeader asserts a response header value.
func (r *Result) ExpectHeader(key, want string) *Result {
	r.t.Helper()
	assert.Equal(r.t, want, r.Header.Get(key), "header %s", key)
	return r
}

// ExpectContentType asserts the media type, ignoring parameters such as charset.
func (r *Result) ExpectContentType(want string) *Result {
	r.t.Helper()
	ct := r.Header.Get(fiber.HeaderContentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	assert.Equal(r.t, want, strings.TrimSpace(ct))
	return r
}

// ExpectJSON asserts the value at a dotted path such as "$.name" or "error.code".
// Integer expectations require a JSON number, not a numeric string.
func (r *Result) ExpectJSON(path string, want any) *Result {
	r.t.Helper()

	got, ok := r.lookup(path)
	if !assert.True(r.t, ok, "json path %s not found in %s", path, r.Body) {
		return r
	}

	switch w := want.(type) {
	case int:
		n, isNum := got.(json.Number)
		if assert.True(r.t, isNum, "json path %s: want number, got %T", path, got) {
			assert.Equal(r.t, strconv.Itoa(w), n.String(), "json path %s", path)
		}
	case int64:
		n, isNum := got.(json.Number)
		if assert.True(r.t, isNum, "json path %s: want number, got %T", path, got) {
			assert.Equal(r.t, strconv.FormatInt(w, 10), n.String(), "json path %s", path)
		}
	case float64:
		n, isNum := got.(json.Number)
		if assert.True(r.t, isNum, "json path %s: want number, got %T", path, got) {
			f, err := n.Float64()
			assert.NoError(r.t, err)
			assert.Equal(r.t, w, f, "json path %s", path)
		}
	default:
		assert.Equal(r.t, want, got, "json path %s", path)
	}
	return r
}

// JSON decodes the body into v.
func (r *Result) JSON(v any) *Result {
	r.t.Helper()
	require.NoError(r.t, json.Unmarshal(r.Body, v))
	return r
}

func (r *Result) lookup(path string) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, false
	}

	path = strings.TrimPrefix(strings.TrimPrefix(path, "$"), ".")
	if path == "" {
		return doc, true
	}

	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}
