package site

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/log"
)

func setConfig(t *testing.T, key string, value any) {
	t.Helper()
	old := gconfig.Shared.Get(key)
	gconfig.Shared.Set(key, value)
	t.Cleanup(func() { gconfig.Shared.Set(key, old) })
}

// TestNormalizeHost verifies host normalization strips ports and lowercases values.
func TestNormalizeHost(t *testing.T) {
	require.Equal(t, "agency.example", normalizeHost("AGENCY.EXAMPLE:443"))
	require.Equal(t, "ar.agency.example", normalizeHost("ar.agency.example."))
	require.Equal(t, "127.0.0.1", normalizeHost("127.0.0.1:8080"))
	require.Equal(t, "::1", normalizeHost("[::1]"))
}

// TestConfigSetResolveHost verifies site resolution respects the Host and X-Forwarded-Host headers.
func TestConfigSetResolveHost(t *testing.T) {
	setConfig(t, "settings.web.sites", map[string]any{
		"en": map[string]any{
			"hosts": []string{"agency.example"},
			"title": "Agency",
		},
		"ar": map[string]any{
			"host":               "ar.agency.example",
			"title":              "الوكالة",
			"turnstile_site_key": "site-key-ar",
			"default":            true,
		},
	})

	set := loadConfigSet(log.Logger.Named("site_test"))

	req := httptest.NewRequest(http.MethodGet, "https://agency.example/", nil)
	req.Host = "agency.example:443"
	require.Equal(t, "en", set.resolve(req).ID)

	req = httptest.NewRequest(http.MethodGet, "https://proxy.internal/", nil)
	req.Header.Set("X-Forwarded-Host", "ar.agency.example, proxy.internal")
	site := set.resolve(req)
	require.Equal(t, "ar", site.ID)
	require.Equal(t, "site-key-ar", site.TurnstileSiteKey)

	req = httptest.NewRequest(http.MethodGet, "https://unknown.example/", nil)
	require.Equal(t, "ar", set.resolve(req).ID)
}

func TestCatalog(t *testing.T) {
	cat := NewCatalog(
		[]Service{
			{ID: "seo", Name: "SEO", NameAr: "تحسين محركات البحث", Order: 2},
			{ID: "web", Name: "Web development", Order: 1},
		},
		[]Plan{{ID: "starter", Name: "Starter", NameAr: "الأساسية", Price: "499", FeaturesAr: []string{"صفحة واحدة"}}},
	)

	require.True(t, cat.HasService("web"))
	require.False(t, cat.HasService("crypto"))

	en := cat.Services(i18n.EN)
	require.Equal(t, "web", en[0].ID)
	require.Equal(t, "SEO", en[1].Name)

	ar := cat.Services(i18n.AR)
	require.Equal(t, "تحسين محركات البحث", ar[1].Name)
	require.Equal(t, "Web development", ar[0].Name)

	require.Equal(t, []string{}, cat.Plans(i18n.EN)[0].Features)
	require.Equal(t, []string{"صفحة واحدة"}, cat.Plans(i18n.AR)[0].Features)
}

func TestCatalogFromConfig(t *testing.T) {
	setConfig(t, "settings.site.services", map[string]any{
		"branding": map[string]any{"name": "Branding", "name_ar": "الهوية", "order": 3},
		"apps":     map[string]any{"name": "Mobile apps", "order": 1},
	})
	setConfig(t, "settings.site.pricing", map[string]any{
		"pro": map[string]any{"name": "Pro", "price": "1999", "currency": "USD", "features": []string{"a", "b"}, "highlighted": true},
	})

	cat := CatalogFromConfig()
	require.True(t, cat.HasService("branding"))
	services := cat.Services(i18n.AR)
	require.Len(t, services, 2)
	require.Equal(t, "apps", services[0].ID)
	require.Equal(t, "الهوية", services[1].Name)

	plans := cat.Plans(i18n.EN)
	require.Len(t, plans, 1)
	require.True(t, plans[0].Highlighted)
	require.Equal(t, []string{"a", "b"}, plans[0].Features)
}

func TestControllerServices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewController(nil, NewCatalog([]Service{{ID: "seo", Name: "SEO", NameAr: "سيو"}}, nil)).
		RegisterPublic(r.Group("/api/public"))

	req := httptest.NewRequest(http.MethodGet, "/api/public/services", nil)
	req.Header.Set("Accept-Language", "ar-SA,ar;q=0.9,en;q=0.5")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Language string    `json:"language"`
		Items    []Service `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ar", body.Language)
	require.Equal(t, "سيو", body.Items[0].Name)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/public/pricing?lang=en", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"language":"en","items":[]}`, w.Body.String())
}
