package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/auth/dao"
	"github.com/Laisky/agency-site/internal/web/auth/dto"
	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/internal/web/auth/service"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/jwt"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
)

type captureMailer struct {
	mu   sync.Mutex
	last *mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg *mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = msg
	return nil
}

func (m *captureMailer) code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return regexp.MustCompile(`\b\d{6}\b`).FindString(m.last.Text)
}

type fixture struct {
	router *gin.Engine
	svc    *service.Auth
	mailer *captureMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := jwt.New([]byte("0123456789abcdef0123"), "agency")
	require.NoError(t, err)

	f := &fixture{mailer: &captureMailer{}}
	f.svc = service.New(log.Logger, dao.New(log.Logger, docstore.NewMemory()), signer,
		service.WithMailer(f.mailer, mail.NewTemplates("Agency", "https://agency.test")))
	ctl := New(f.svc, nil)

	f.router = gin.New()
	ctl.RegisterAuth(f.router.Group("/api/auth"))
	admin := f.router.Group("/api/admin", ctl.Middleware())
	ctl.RegisterAdmin(admin)
	admin.POST("/content", CanWrite(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginInput{Email: email, Password: "correct horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ch dto.Challenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ch))

	w = f.do(t, http.MethodPost, "/api/auth/login/verify", "", dto.VerifyInput{ChallengeID: ch.ChallengeID, Code: f.mailer.code()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Header().Get("Set-Cookie"), TokenCookie+"=")

	var res dto.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Token
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for email, role := range map[string]model.Role{
		"admin@agency.test":  model.RoleAdmin,
		"viewer@agency.test": model.RoleViewer,
	} {
		_, err := f.svc.CreateUser(ctx, events.Actor{Name: "test"}, &dto.UserInput{
			Email: email, Name: string(role), Password: "correct horse", Role: role,
		})
		require.NoError(t, err)
	}

	w := f.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginInput{Email: "admin@agency.test", Password: "nope nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"category":"auth"`)

	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/auth/me", "", nil).Code)

	adminToken := f.login(t, "admin@agency.test")
	viewerToken := f.login(t, "viewer@agency.test")

	w = f.do(t, http.MethodGet, "/api/auth/me", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "password")

	// role gates
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/admin/users", adminToken, nil).Code)
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/admin/users", viewerToken, nil).Code)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/admin/content", adminToken, nil).Code)
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/admin/content", viewerToken, nil).Code)

	w = f.do(t, http.MethodPost, "/api/admin/users", adminToken, dto.UserInput{
		Email: "editor@agency.test", Name: "Editor", Password: "correct horse", Role: model.RoleEditor,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/auth/logout", viewerToken, nil).Code)
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/auth/me", viewerToken, nil).Code)
}

func TestTokenFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "abc"})
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	require.Equal(t, "abc", requestToken(c))

	req.Header.Set("Authorization", "bearer xyz")
	require.Equal(t, "xyz", requestToken(c))
}
