package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/web/leads/dto"
	"github.com/Laisky/agency-site/internal/web/leads/service"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/throttle"
)

type catalog map[string]bool

func (c catalog) HasService(id string) bool { return c[id] }

type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) error {
	if token != "ok" {
		return errors.New("turnstile verification failed")
	}
	return nil
}

func TestLeadRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := service.New(log.Logger, docstore.NewMemory(), catalog{"web": true},
		service.WithLimiter(throttle.New(ctx), 1))
	r := gin.New()
	ctl := New(svc, tokenVerifier{})
	ctl.RegisterPublic(r.Group("/api/public"))
	ctl.RegisterAdmin(r.Group("/api/admin"), func(c *gin.Context) {})

	post := func(path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept-Language", "ar")
		req.RemoteAddr = "192.0.2.1:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	in := dto.LeadInput{
		Name: "Omar", Email: "omar@example.com",
		Services: []string{"web"}, Budget: "1k_5k", Timeline: "asap",
		TurnstileToken: "bad",
	}
	require.Equal(t, http.StatusForbidden, post("/api/public/quote", in).Code)

	in.TurnstileToken = "ok"
	w := post("/api/public/quote", in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var receipt dto.Receipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	require.NotEmpty(t, receipt.ID)
	require.Contains(t, receipt.Message, "شكرًا")

	w = post("/api/public/contact", dto.LeadInput{Name: "Omar", Email: "omar@example.com", Message: "hi", TurnstileToken: "ok"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/leads?kind=quote", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.LeadList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	require.Equal(t, "192.0.2.1", list.Items[0].IP)
}
