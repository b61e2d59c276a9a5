package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/dav"
	"github.com/flowmesh/dexterity/internal/site"
	"github.com/flowmesh/dexterity/internal/test"
)

func newTestSite(t *testing.T) *site.Site {
	t.Helper()
	return test.NewStockSite(t, site.Options{
		Rules: []dav.Rule{
			{Name: "html", Extensions: []string{"html"}, MimeTypes: []string{"text/html"}, TypeID: "page"},
		},
	})
}

func newTestRouter(t *testing.T, opts RouterOptions) (*Router, *site.Site) {
	t.Helper()
	s := newTestSite(t)
	return NewRouter(s, opts), s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer("127.0.0.1:0", newTestSite(t), RouterOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, server.Start(ctx))
	assert.True(t, server.Ready())

	resp, err := http.Get("http://" + server.Addr() + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop(ctx))
	assert.False(t, server.Ready())
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, RouterOptions{})

	w := do(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		router, _ := newTestRouter(t, RouterOptions{Ready: func() bool { return true }})

		w := do(t, router, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ready")
	})

	t.Run("not ready", func(t *testing.T) {
		router, _ := newTestRouter(t, RouterOptions{Ready: func() bool { return false }})

		w := do(t, router, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "not ready")
	})
}

func TestAuthentication(t *testing.T) {
	store := auth.NewInMemoryTokenStore()
	token, _, err := store.CreateToken("reader", "site", nil, []auth.Permission{auth.PermissionView}, 0)
	require.NoError(t, err)
	router, _ := newTestRouter(t, RouterOptions{TokenStore: store})

	w := do(t, router, http.MethodGet, "/api/v1/types", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/types", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Reading is allowed, administering types is not
	req = httptest.NewRequest(http.MethodPost, "/api/v1/types", bytes.NewReader([]byte(`{"id":"news"}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Health endpoints stay open
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/health", nil).Code)
}

func TestInvalidPaths(t *testing.T) {
	router, _ := newTestRouter(t, RouterOptions{})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/v1/types/page/unknown", http.StatusNotFound},
		{http.MethodPut, "/api/v1/types", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/v1/content/", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/content/missing", http.StatusNotFound},
		{http.MethodGet, "/dav/missing/deeper", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
