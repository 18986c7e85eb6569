package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
)

func newProxyRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p := NewProxy(1024*1024, logging.NewNop())
	r := gin.New()
	r.GET("/api/extensions/proxy", p.Handle)
	return r
}

func proxyGet(r *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/extensions/proxy?url="+url.QueryEscape(target), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProxyRewritesRelativeReferences(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><base href="/other/"><link href="style.css" rel="stylesheet"></head>` +
			`<body><img src="img/map.png"><a href="https://elsewhere.example/page">out</a></body></html>`))
	}))
	defer upstream.Close()

	r := newProxyRouter(t)
	w := proxyGet(r, upstream.URL+"/gen/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	// Relative references route back through the proxy, resolved against
	// the upstream base.
	assert.Contains(t, body, "/api/extensions/proxy?url="+escaped(upstream.URL+"/gen/style.css"))
	assert.Contains(t, body, "/api/extensions/proxy?url="+escaped(upstream.URL+"/gen/img/map.png"))
	// Absolute references pass through untouched.
	assert.Contains(t, body, `href="https://elsewhere.example/page"`)
	// The base tag is gone and the interceptor is installed.
	assert.NotContains(t, body, "<base")
	assert.Contains(t, body, "XMLHttpRequest.prototype.open")

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestProxyPassesThroughNonHTML(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rooms": 3}`))
	}))
	defer upstream.Close()

	r := newProxyRouter(t)
	w := proxyGet(r, upstream.URL+"/data.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms": 3}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestProxyRejectsBadTargets(t *testing.T) {
	r := newProxyRouter(t)

	assert.Equal(t, http.StatusBadRequest, proxyGet(r, "").Code)
	assert.Equal(t, http.StatusBadRequest, proxyGet(r, "not-a-url").Code)
	assert.Equal(t, http.StatusBadRequest, proxyGet(r, "ftp://host/file").Code)
}

func escaped(s string) string {
	return url.QueryEscape(s)
}
