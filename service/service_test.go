package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/auth"
	"github.com/evergreen-ci/slither/rest/data"
	"github.com/evergreen-ci/slither/rest/model"
	"github.com/evergreen-ci/slither/rest/route"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
)

type RouterSuite struct {
	sc        *data.MockConnector
	conf      slither.APIConfig
	resources []*route.Resource
	suite.Suite
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.sc = data.NewMockConnector()
	s.conf = slither.APIConfig{}
	s.Require().NoError(s.conf.ValidateAndDefault())

	resources, err := BuildResources([]slither.ResourceConfig{
		{Name: "widget", Collection: "widgets"},
		{Name: "gadget", Collection: "gadgets", CORS: slither.CORSConfig{Enabled: true}},
	}, auth.NoAuthentication{})
	s.Require().NoError(err)
	s.resources = resources
}

func (s *RouterSuite) handler(check HealthCheck) http.Handler {
	h, err := GetRouter(s.conf, s.sc, check, s.resources...)
	s.Require().NoError(err)
	return h
}

func (s *RouterSuite) do(h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestResourcesAreServed() {
	s.sc.Insert("widgets", bson.M{"name": "w1"})
	h := s.handler(nil)

	rec := s.do(h, http.MethodGet, "/widgets/w1", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	body := map[string]map[string]any{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("w1", body["widgets"]["name"])

	s.Equal(http.StatusNotFound, s.do(h, http.MethodGet, "/gizmos", nil).Code)
}

func (s *RouterSuite) TestPrefix() {
	s.conf.Prefix = "/api"
	s.sc.Insert("widgets", bson.M{"name": "w1"})
	h := s.handler(nil)

	s.Equal(http.StatusOK, s.do(h, http.MethodGet, "/api/widgets", nil).Code)
	s.Equal(http.StatusNotFound, s.do(h, http.MethodGet, "/widgets", nil).Code)
	s.Equal(http.StatusOK, s.do(h, http.MethodGet, "/status", nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/widgets", strings.NewReader(`{"widgets": {"name": "w2"}}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.True(strings.HasPrefix(rec.Header().Get("Location"), "/api/widgets/"))
}

func (s *RouterSuite) TestStatus() {
	h := s.handler(func(context.Context) error { return nil })
	rec := s.do(h, http.MethodGet, "/status", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	resp := statusResponse{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("ok", resp.Database)
	s.Equal([]string{"widget", "gadget"}, resp.Resources)
}

func (s *RouterSuite) TestStatusWithUnreachableDatabase() {
	h := s.handler(func(context.Context) error { return errors.New("no reachable servers") })
	rec := s.do(h, http.MethodGet, "/status", nil)
	s.Require().Equal(http.StatusServiceUnavailable, rec.Code)

	resp := statusResponse{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("unreachable", resp.Database)
}

func (s *RouterSuite) TestMetrics() {
	h := s.handler(nil)
	s.Equal(http.StatusOK, s.do(h, http.MethodGet, "/widgets", nil).Code)
	s.Equal(http.StatusNotFound, s.do(h, http.MethodGet, "/widgets/missing", nil).Code)

	rec := s.do(h, http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, `slither_http_requests_total{method="GET",route="/widgets",status="200"} 1`)
	s.Contains(body, `slither_http_requests_total{method="GET",route="/widgets/{lookup}",status="404"} 1`)
	s.Contains(body, "slither_http_request_duration_seconds")
	s.Contains(body, "go_goroutines")
}

func (s *RouterSuite) TestMetricsDisabled() {
	s.conf.DisableMetrics = true
	h := s.handler(nil)
	s.Equal(http.StatusNotFound, s.do(h, http.MethodGet, "/metrics", nil).Code)
	s.Equal(http.StatusOK, s.do(h, http.MethodGet, "/widgets", nil).Code)
}

func (s *RouterSuite) TestRateLimit() {
	s.conf.RateLimit = 0.001
	s.conf.Burst = 1
	h := s.handler(nil)

	s.Equal(http.StatusOK, s.do(h, http.MethodGet, "/widgets", nil).Code)

	rec := s.do(h, http.MethodGet, "/widgets", nil)
	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("1", rec.Header().Get("Retry-After"))
	s.JSONEq(`{"errors": "Rate limit exceeded"}`, rec.Body.String())

	s.Equal(http.StatusOK, s.do(h, http.MethodGet, "/status", nil).Code)
	metrics := s.do(h, http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, metrics.Code)
	s.Contains(metrics.Body.String(), "slither_rate_limit_rejects_total 1")
}

func (s *RouterSuite) TestProxyHeaders() {
	headers := map[string]string{
		"Origin":            "https://app.example.com",
		"X-Forwarded-Proto": "https",
	}

	rec := s.do(s.handler(nil), http.MethodOptions, "/gadgets", headers)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("http://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	s.conf.TrustProxyHeaders = true
	rec = s.do(s.handler(nil), http.MethodOptions, "/gadgets", headers)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func (s *RouterSuite) TestPanicsAreRecovered() {
	h, err := GetRouter(s.conf, panickingConnector{}, nil, s.resources...)
	s.Require().NoError(err)

	rec := s.do(h, http.MethodGet, "/widgets", nil)
	s.Equal(http.StatusInternalServerError, rec.Code)
}

type panickingConnector struct{ data.Connector }

func (panickingConnector) Find(context.Context, string, data.FindOptions) ([]model.Record, error) {
	panic("storage exploded")
}

func TestGetRouterServesUnversionedRoutes(t *testing.T) {
	conf := slither.APIConfig{}
	require.NoError(t, conf.ValidateAndDefault())

	h, err := GetRouter(conf, data.NewMockConnector(), nil)
	require.NoError(t, err)
	require.NotNil(t, h)

	for _, path := range []string{statusPath, metricsPath} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestBuildResources(t *testing.T) {
	resources, err := BuildResources([]slither.ResourceConfig{
		{Name: "widget"},
		{Name: "company", URL: "/companies/{site}/companies"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "/widgets", resources[0].URL())

	_, err = BuildResources([]slither.ResourceConfig{
		{Name: "widget", Authorization: "sometimes"},
		{Name: "gadget", FieldTypes: map[string]string{"size": "integer"}},
		{Name: "gizmo"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget")
	assert.Contains(t, err.Error(), "gadget")
	assert.NotContains(t, err.Error(), "gizmo")
}

func TestRun(t *testing.T) {
	srv := GetServer("127.0.0.1:0", http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestRunReportsListenErrors(t *testing.T) {
	srv := GetServer("127.0.0.1:-1", http.NotFoundHandler())
	err := Run(context.Background(), srv, time.Second)
	assert.Error(t, err)
}

func TestGetServer(t *testing.T) {
	srv := GetServer(":9090", http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, time.Minute, srv.ReadTimeout)
	assert.Equal(t, 30*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, time.Minute, srv.WriteTimeout)
}
