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

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/blog/dao"
	"github.com/Laisky/agency-site/internal/web/blog/dto"
	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/internal/web/blog/service"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) error {
	if token != "ok" {
		return errors.New("turnstile verification failed")
	}
	return nil
}

func newRouter(t *testing.T, withActor bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.New(log.Logger, dao.New(log.Logger, docstore.NewMemory()))
	ctl := New(svc, tokenVerifier{})

	r := gin.New()
	ctl.RegisterPublic(r.Group("/api/public"))
	admin := r.Group("/api/admin", func(c *gin.Context) {
		if withActor {
			webutil.SetActor(c, events.Actor{ID: "u1", Name: "Editor", Role: "editor"})
		}
	})
	ctl.RegisterAdmin(admin, func(c *gin.Context) {})
	return r
}

func call(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorResponse struct {
	Error webutil.ErrorBody `json:"error"`
}

func TestBlogFlow(t *testing.T) {
	r := newRouter(t, true)

	w := call(t, r, http.MethodPost, "/api/admin/categories", dto.CategoryInput{Name: "News"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cat := decode[model.Category](t, w)

	w = call(t, r, http.MethodPost, "/api/admin/posts", dto.PostInput{
		Title:      "Hello World",
		Content:    "## Intro\n\nbody",
		CategoryID: cat.ID,
		Tags:       []string{"go"},
		Status:     model.PostPublished,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := decode[model.Post](t, w)
	require.Equal(t, "hello-world", post.Slug)

	w = call(t, r, http.MethodGet, "/api/public/posts?category=news", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.PostList](t, w)
	require.Equal(t, 1, list.Total)

	w = call(t, r, http.MethodGet, "/api/public/posts/hello-world", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[dto.PostView](t, w)
	require.Contains(t, view.HTML, "Intro")

	w = call(t, r, http.MethodPost, "/api/public/comments", dto.CommentInput{
		PostID: post.ID, Name: "Ali", Email: "ali@example.com", Content: "nice", TurnstileToken: "bad",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "security", decode[errorResponse](t, w).Error.Category)

	w = call(t, r, http.MethodPost, "/api/public/comments", dto.CommentInput{
		PostID: post.ID, Name: "Ali", Email: "ali@example.com", Content: "nice", TurnstileToken: "ok",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cmt := decode[dto.CommentView](t, w)
	require.NotContains(t, w.Body.String(), "ali@example.com")

	type items struct {
		Items []*dto.CommentView `json:"items"`
	}
	w = call(t, r, http.MethodGet, "/api/public/posts/"+post.ID+"/comments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[items](t, w).Items)

	w = call(t, r, http.MethodPost, "/api/admin/comments/"+cmt.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodPost, "/api/admin/comments/"+cmt.ID+"/reply", replyRequest{Content: "thanks"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/public/posts/"+post.ID+"/comments", nil)
	got := decode[items](t, w).Items
	require.Len(t, got, 1)
	require.Len(t, got[0].Replies, 1)

	w = call(t, r, http.MethodGet, "/api/admin/comments/"+cmt.ID+"/thread", nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode[struct {
		Items []threadItem `json:"items"`
	}](t, w).Items
	require.Len(t, thread, 2)
	require.Equal(t, 1, thread[1].Depth)

	w = call(t, r, http.MethodPost, "/api/public/posts/"+post.ID+"/like", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[dto.LikeResult](t, w).Liked)
	require.Contains(t, w.Header().Get("Set-Cookie"), webutil.VisitorCookie)

	w = call(t, r, http.MethodDelete, "/api/admin/categories/"+cat.ID, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodDelete, "/api/admin/comments/"+cmt.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, decode[map[string]int](t, w)["deleted"])
}

func TestBlogErrors(t *testing.T) {
	r := newRouter(t, false)

	w := call(t, r, http.MethodPost, "/api/admin/posts", dto.PostInput{Title: "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, r, http.MethodGet, "/api/public/posts?size=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation", decode[errorResponse](t, w).Error.Category)

	w = call(t, r, http.MethodGet, "/api/public/posts/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, r, http.MethodGet, "/api/public/posts?lang=ar&size=abc", nil)
	require.NotEmpty(t, decode[errorResponse](t, w).Error.Message)
}
