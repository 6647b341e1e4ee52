package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/web/dashboard/model"
	"github.com/Laisky/agency-site/internal/web/dashboard/service"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

func newRouter() (*gin.Engine, *service.Dashboard) {
	gin.SetMode(gin.TestMode)
	svc := service.New(log.Logger, docstore.NewMemory())
	r := gin.New()
	New(svc).RegisterAdmin(r.Group("/api/admin"))
	return r, svc
}

func TestDashboardRoutes(t *testing.T) {
	r, svc := newRouter()
	ctx := context.Background()
	svc.Notify(ctx, "lead", "New lead", "", "/admin/leads/1")
	svc.Notify(ctx, "comment", "New comment", "", "")

	call := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	w := call(http.MethodGet, "/api/admin/notifications?unread=true&limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []*model.Notification `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)

	require.Equal(t, http.StatusBadRequest, call(http.MethodGet, "/api/admin/notifications?limit=x").Code)
	require.Equal(t, http.StatusBadRequest, call(http.MethodGet, "/api/admin/notifications?unread=maybe").Code)
	require.Equal(t, http.StatusNoContent, call(http.MethodPost, "/api/admin/notifications/"+list.Items[0].ID+"/read").Code)
	require.Equal(t, http.StatusNotFound, call(http.MethodPost, "/api/admin/notifications/missing/read").Code)

	w = call(http.MethodGet, "/api/admin/notifications/unread")
	require.JSONEq(t, `{"unread":1}`, w.Body.String())

	w = call(http.MethodPost, "/api/admin/notifications/read")
	require.JSONEq(t, `{"updated":1}`, w.Body.String())

	w = call(http.MethodGet, "/api/admin/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Zero(t, stats.UnreadNotifications)

	require.Equal(t, http.StatusOK, call(http.MethodGet, "/api/admin/activities").Code)
}

func TestNotificationStream(t *testing.T) {
	r, svc := newRouter()
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/admin/notifications/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := bufio.NewScanner(resp.Body)
	next := func() string {
		for events.Scan() {
			if line := events.Text(); strings.HasPrefix(line, "event:") {
				return strings.TrimPrefix(line, "event:")
			}
		}
		return ""
	}

	require.Equal(t, "ready", next())
	svc.Notify(ctx, "lead", "New lead", "", "")
	require.Equal(t, "notification", next())
	require.True(t, events.Scan())
	require.Contains(t, events.Text(), "New lead")
}
