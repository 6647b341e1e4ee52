package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	gmw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/global"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/library/log"
)

var (
	ginModeOnce sync.Once
)

func setupGinTestMode() {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})
}

var testDomains = []string{"agency.example", ".agency.sa"}

func TestAllowCORS(t *testing.T) {
	setupGinTestMode()
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		origin         string
		expectedStatus int
		expectedCORS   bool
	}{
		{"No origin header - should pass through", http.MethodGet, "", http.StatusOK, false},
		{"Valid subdomain origin - GET request", http.MethodGet, "https://www.agency.example", http.StatusOK, true},
		{"Valid main domain origin", http.MethodPost, "https://agency.sa", http.StatusOK, true},
		{"Valid subdomain origin - OPTIONS preflight", http.MethodOptions, "https://admin.agency.example", http.StatusNoContent, true},
		{"Invalid origin - OPTIONS preflight", http.MethodOptions, "https://evil.com", http.StatusForbidden, false},
		{"Invalid origin - GET request", http.MethodGet, "https://evil.com", http.StatusOK, false},
		{"Invalid subdomain of different domain", http.MethodGet, "https://agency.example.evil.com", http.StatusOK, false},
		{"Case insensitive domain matching", http.MethodGet, "https://WWW.Agency.Example", http.StatusOK, true},
		{"Invalid origin with malformed URL", http.MethodGet, "not-a-valid-url", http.StatusOK, false},
		{"Domain that contains agency.sa but is not subdomain", http.MethodGet, "https://notagency.sa", http.StatusOK, false},
		{"Origin with port number", http.MethodGet, "http://localhost.agency.example:8080", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(allowCORS(testDomains))
			router.Any("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Status code mismatch")
			if tt.expectedCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
				assert.Equal(t, "Origin", w.Header().Get("Vary"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestAllowCORSNoDomains(t *testing.T) {
	setupGinTestMode()
	t.Parallel()

	require.False(t, allowedOrigin("https://agency.example", nil))
	require.False(t, allowedOrigin("https://agency.example", []string{" ", ""}))
	require.False(t, allowedOrigin("   ", testDomains))
}

func TestRequestLoggerInHandlers(t *testing.T) {
	setupGinTestMode()
	t.Parallel()

	router := gin.New()
	router.Use(gmw.NewLoggerMiddleware(gmw.WithLogger(log.Logger.Named("test"))))

	var fromCtx bool
	router.GET("/test", func(c *gin.Context) {
		fromCtx = webutil.RequestLogger(c, nil) != nil
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, fromCtx)
}

func TestNewServer(t *testing.T) {
	setupGinTestMode()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for key, val := range map[string]any{
		"debug":                  true,
		"settings.secret":        "0123456789abcdef0123456789abcdef",
		"settings.db.backend":    global.BackendMemory,
		"settings.mail.provider": "log",
		"settings.site.name":     "Agency",
		"settings.site.url":      "https://agency.example",
	} {
		original := gconfig.Shared.Get(key)
		gconfig.Shared.Set(key, val)
		t.Cleanup(func() { gconfig.Shared.Set(key, original) })
	}

	backends, err := global.SetupDB(ctx)
	require.NoError(t, err)
	defer backends.Close(ctx)
	require.Nil(t, backends.Redis)

	svcs, err := global.SetupServices(ctx, backends)
	require.NoError(t, err)
	server, err := NewServer(svcs)
	require.NoError(t, err)

	call := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, call(http.MethodGet, "/health", "").Code)
	for _, path := range []string{
		"/api/public/site",
		"/api/public/services",
		"/api/public/pricing",
		"/api/public/posts",
		"/api/public/categories",
		"/api/public/projects",
	} {
		require.Equal(t, http.StatusOK, call(http.MethodGet, path, "").Code, path)
	}

	w := call(http.MethodGet, "/api/public/query?query="+url.QueryEscape("{ categories { id } services { id } }"), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"categories":[`)
	require.NotContains(t, w.Body.String(), `"errors"`)

	w = call(http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body struct {
		Error webutil.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "auth", body.Error.Category)

	require.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/api/admin/users", "not-a-jwt").Code)
	require.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/api/auth/me", "").Code)
}
