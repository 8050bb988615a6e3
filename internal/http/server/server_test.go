package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"helloapi/internal/apitest"
	"helloapi/internal/logging"
	"helloapi/internal/security"
	"helloapi/internal/service"
)

func testDirectory(t *testing.T) *security.Directory {
	t.Helper()
	dir, err := security.NewDirectory(
		security.User{Username: "user", Password: "secret", Roles: []string{"USER"}},
		security.User{Username: "auditor", Password: "audit", Roles: []string{"AUDITOR"}},
	)
	require.NoError(t, err)
	return dir
}

func newClient(t *testing.T, opts Options) *apitest.Client {
	t.Helper()
	if opts.Service == nil {
		opts.Service = service.NewHelloService()
	}
	app, err := New(opts)
	require.NoError(t, err)
	return apitest.New(t, app)
}

func TestHello_ReturnsHello(t *testing.T) {
	mvc := newClient(t, Options{Directory: testDirectory(t), Layers: DefaultLayers()}).
		WithUser("user", "secret")

	mvc.Get("/hello").Do().
		ExpectStatus(fiber.StatusOK).
		ExpectContentType(fiber.MIMETextPlain).
		ExpectBody("hello")
}

func TestHelloDto_ReturnsDto(t *testing.T) {
	mvc := newClient(t, Options{Directory: testDirectory(t), Layers: DefaultLayers()}).
		WithUser("user", "secret")

	name := "hello"
	amount := 1000

	mvc.Get("/hello/dto").
		Param("name", name).
		Param("amount", "1000").
		Do().
		ExpectStatus(fiber.StatusOK).
		ExpectContentType(fiber.MIMEApplicationJSON).
		ExpectJSON("$.name", name).
		ExpectJSON("$.amount", amount)
}

func TestHelloDto_RoundTrip(t *testing.T) {
	mvc := newClient(t, Options{})

	cases := []struct {
		name   string
		amount string
		want   int
	}{
		{name: "hello", amount: "42", want: 42},
		{name: "zero", amount: "0", want: 0},
		{name: "negative", amount: "-15", want: -15},
		{name: "with spaces & symbols ?=", amount: "7", want: 7},
		{name: "유니코드", amount: "2147483647", want: 2147483647},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mvc.Get("/hello/dto").Param("name", tc.name).Param("amount", tc.amount).Do().
				ExpectStatus(fiber.StatusOK).
				ExpectJSON("$.name", tc.name).
				ExpectJSON("$.amount", tc.want)
		})
	}
}

func TestHelloDto_InvalidAmount(t *testing.T) {
	mvc := newClient(t, Options{Layers: Layers{RequestID: true}})

	mvc.Get("/hello/dto").Param("name", "hello").Param("amount", "abc").
		Header("X-Request-ID", "req-abc").
		Do().
		ExpectStatus(fiber.StatusBadRequest).
		ExpectJSON("error.code", "INVALID_AMOUNT").
		ExpectJSON("request_id", "req-abc")
}

func TestIdempotent(t *testing.T) {
	mvc := newClient(t, Options{})

	first := mvc.Get("/hello/dto").Param("name", "n").Param("amount", "5").Do()
	second := mvc.Get("/hello/dto").Param("name", "n").Param("amount", "5").Do()
	assert.Equal(t, first.Body, second.Body)

	a := mvc.Get("/hello").Do()
	b := mvc.Get("/hello").Do()
	assert.Equal(t, a.Body, b.Body)
}

func TestSecurityLayer(t *testing.T) {
	client := newClient(t, Options{Directory: testDirectory(t), Layers: Layers{Security: true}})

	t.Run("anonymous", func(t *testing.T) {
		client.Get("/hello").Do().
			ExpectStatus(fiber.StatusUnauthorized).
			ExpectHeader(fiber.HeaderWWWAuthenticate, `Basic realm="helloapi"`).
			ExpectJSON("error.code", "UNAUTHORIZED")
	})

	t.Run("bad password", func(t *testing.T) {
		client.WithUser("user", "wrong").Get("/hello/dto").
			Param("name", "x").Param("amount", "1").Do().
			ExpectStatus(fiber.StatusUnauthorized)
	})

	t.Run("missing role", func(t *testing.T) {
		client.WithUser("auditor", "audit").Get("/hello").Do().
			ExpectStatus(fiber.StatusForbidden).
			ExpectJSON("error.code", "FORBIDDEN")
	})

	t.Run("health is public", func(t *testing.T) {
		client.Get("/health").Do().
			ExpectStatus(fiber.StatusOK).
			ExpectJSON("status", "healthy")
	})
}

func TestSecurityExcluded(t *testing.T) {
	layers := DefaultLayers()
	layers.Security = false

	client := newClient(t, Options{Layers: layers})

	client.Get("/hello").Do().
		ExpectStatus(fiber.StatusOK).
		ExpectBody("hello")
}

func TestCustomRole(t *testing.T) {
	client := newClient(t, Options{
		Directory:    testDirectory(t),
		RequiredRole: "AUDITOR",
		Realm:        "audit",
		Layers:       Layers{Security: true},
	})

	client.WithUser("auditor", "audit").Get("/hello").Do().ExpectStatus(fiber.StatusOK)
	client.WithUser("user", "secret").Get("/hello").Do().ExpectStatus(fiber.StatusForbidden)
	client.Get("/hello").Do().ExpectHeader(fiber.HeaderWWWAuthenticate, `Basic realm="audit"`)
}

func TestMetricsLayer(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := newClient(t, Options{Registry: reg, Layers: Layers{Metrics: true}})

	client.Get("/hello").Do().ExpectStatus(fiber.StatusOK)
	client.Get("/hello/dto").Param("name", "a").Param("amount", "x").Do().ExpectStatus(fiber.StatusBadRequest)

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res := client.Get("/metrics").Do().ExpectStatus(fiber.StatusOK)
	assert.Contains(t, string(res.Body), `http_requests_total{method="GET",path="/hello",status="200"} 1`)
	assert.Contains(t, string(res.Body), `http_requests_total{method="GET",path="/hello/dto",status="400"} 1`)
}

func TestMetricsLayer_UnknownPaths(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := newClient(t, Options{Registry: reg, Layers: Layers{Metrics: true}})

	for i := 0; i < 20; i++ {
		client.Get(fmt.Sprintf("/x%02d", i)).Do().ExpectStatus(fiber.StatusNotFound)
	}

	res := client.Get("/metrics").Do().ExpectStatus(fiber.StatusOK)
	assert.Contains(t, string(res.Body), `http_requests_total{method="GET",path="unmatched",status="404"} 20`)

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetricsDisabled(t *testing.T) {
	client := newClient(t, Options{})

	client.Get("/metrics").Do().ExpectStatus(fiber.StatusNotFound)
}

func TestLoggerLayer(t *testing.T) {
	var buf bytes.Buffer
	client := newClient(t, Options{
		Logger: logging.New(&buf, time.UTC),
		Layers: Layers{RequestID: true, Logger: true},
	})

	client.Get("/hello").Header("X-Request-ID", "log-1").Do().ExpectStatus(fiber.StatusOK)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "log-1", entry["request_id"])
	assert.Equal(t, "/hello", entry["path"])
	assert.Equal(t, float64(fiber.StatusOK), entry["status"])
}

func TestRateLimitLayer(t *testing.T) {
	client := newClient(t, Options{
		Limiter: rate.NewLimiter(rate.Limit(0.0001), 1),
		Layers:  Layers{RateLimit: true},
	})

	client.Get("/hello").Do().ExpectStatus(fiber.StatusOK)
	client.Get("/hello").Do().
		ExpectStatus(fiber.StatusTooManyRequests).
		ExpectJSON("error.code", "TOO_MANY_REQUESTS")
}

func TestDocsLayer(t *testing.T) {
	client := newClient(t, Options{Layers: Layers{Docs: true}})

	res := client.Get("/swagger/doc.json").Do().ExpectStatus(fiber.StatusOK)
	assert.Contains(t, string(res.Body), "/hello/dto")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoService)

	svc := service.NewHelloService()

	_, err = New(Options{Service: svc, Layers: Layers{Security: true}})
	assert.ErrorIs(t, err, ErrNoDirectory)

	_, err = New(Options{Service: svc, Layers: Layers{RateLimit: true}})
	assert.ErrorIs(t, err, ErrNoLimiter)

	reg := prometheus.NewRegistry()
	_, err = New(Options{Service: svc, Registry: reg, Layers: Layers{Metrics: true}})
	require.NoError(t, err)
	// same registry twice collides on metric names
	_, err = New(Options{Service: svc, Registry: reg, Layers: Layers{Metrics: true}})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	app, err := New(Options{Service: service.NewHelloService()})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, app, ln, time.Second, zap.NewNop())
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/hello")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestTracingLayer(t *testing.T) {
	// with no tracer provider installed otelfiber records into the global no-op provider
	client := newClient(t, Options{Layers: Layers{Tracing: true}})

	client.Get("/hello").Do().
		ExpectStatus(fiber.StatusOK).
		ExpectBody("hello")
}
