package server

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/labcalc/internal/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.Version = "test"
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s.Handler()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxBodyBytes = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRoot(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer(t, nil).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "labcalc API vtest is running")
}

func TestNotFoundIsJSON(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer(t, nil).ServeHTTP(w, httptest.NewRequest("GET", "/api/upload", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body["detail"])
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("X-Request-ID", "lab-42")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "lab-42", w.Header().Get("X-Request-ID"))
}

func TestCORSAllowAll(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/api/calculate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	newTestServer(t, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSOriginList(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.CORSOrigins = []string{"https://lab.example.org/"}
	})

	tests := []struct {
		origin string
		want   string
	}{
		{"https://lab.example.org", "https://lab.example.org"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"), tt.origin)
	}
}

func TestGzipResponses(t *testing.T) {
	body := `{"x":[1,2,3,4,5],"y":[2,4,6,8,10],"dy":[0.1,0.1,0.1,0.1,0.1]}`
	req := httptest.NewRequest("POST", "/api/fit", strings.NewReader(body))
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	newTestServer(t, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Contains(t, resp, "stats")
	assert.Contains(t, resp, "curve")
}

func TestStopWithoutStart(t *testing.T) {
	s, err := New(config.Default())
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}
