package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/web/portfolio/dto"
	"github.com/Laisky/agency-site/internal/web/portfolio/model"
	"github.com/Laisky/agency-site/internal/web/portfolio/service"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

func TestPortfolioRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctl := New(service.New(log.Logger, docstore.NewMemory(), nil))
	ctl.RegisterPublic(r.Group("/api/public"))
	ctl.RegisterAdmin(r.Group("/api/admin"), func(c *gin.Context) {
		if c.GetHeader("X-Role") != "editor" {
			c.AbortWithStatus(http.StatusForbidden)
		}
	})

	call := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Role", "editor")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call(http.MethodPost, "/api/admin/projects", dto.ProjectInput{Title: "Clinic Booking", TitleAr: "حجز العيادة", Published: true, Featured: true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	prj := new(model.Project)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), prj))

	w = call(http.MethodPost, "/api/admin/projects", dto.ProjectInput{Title: "Clinic booking"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = call(http.MethodGet, "/api/public/projects?featured=true&lang=ar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []*dto.ProjectView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, "حجز العيادة", list.Items[0].Title)

	require.Equal(t, http.StatusBadRequest, call(http.MethodGet, "/api/public/projects?featured=maybe", nil).Code)
	require.Equal(t, http.StatusOK, call(http.MethodGet, "/api/public/projects/clinic-booking", nil).Code)
	require.Equal(t, http.StatusNotFound, call(http.MethodGet, "/api/public/projects/nope", nil).Code)

	w = call(http.MethodPut, "/api/admin/projects/"+prj.ID, dto.ProjectInput{Title: "Clinic Booking", Slug: "clinic-booking"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, http.StatusNotFound, call(http.MethodGet, "/api/public/projects/clinic-booking", nil).Code)

	require.Equal(t, http.StatusNoContent, call(http.MethodDelete, "/api/admin/projects/"+prj.ID, nil).Code)
	require.Equal(t, http.StatusNotFound, call(http.MethodGet, "/api/admin/projects/"+prj.ID, nil).Code)
}
