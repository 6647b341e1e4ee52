package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

const disqusExport = `<?xml version="1.0" encoding="utf-8"?>
<disqus xmlns="http://disqus.com" xmlns:dsq="http://disqus.com/disqus-internals">
  <thread dsq:id="t1">
    <link>https://agency.test/blog/go-tips/</link>
    <title>Go tips</title>
  </thread>
  <thread dsq:id="t2">
    <link>https://agency.test/blog/gone</link>
  </thread>
  <post dsq:id="c2">
    <message><![CDATA[<p>Agreed</p>]]></message>
    <createdAt>2020-01-02T10:00:00Z</createdAt>
    <author><name>Omar</name></author>
    <thread dsq:id="t1"/>
    <parent dsq:id="c1"/>
  </post>
  <post dsq:id="c1">
    <message><![CDATA[<p>Great <b>post</b></p>]]></message>
    <createdAt>2020-01-01T10:00:00Z</createdAt>
    <author><name>Lina</name></author>
    <thread dsq:id="t1"/>
  </post>
  <post dsq:id="c3">
    <message>spam</message>
    <isSpam>true</isSpam>
    <thread dsq:id="t1"/>
  </post>
  <post dsq:id="c4">
    <message>removed</message>
    <isDeleted>true</isDeleted>
    <thread dsq:id="t1"/>
  </post>
  <post dsq:id="c5">
    <message>orphan</message>
    <thread dsq:id="t2"/>
  </post>
</disqus>`

func TestImportDisqus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.store.Create(ctx, model.CollPosts, "p1", &model.Post{
		ID: "p1", Slug: "go-tips", Title: "Go tips", Status: model.PostPublished,
	}))

	export, err := ParseDisqus(strings.NewReader(disqusExport))
	require.NoError(t, err)
	require.Len(t, export.Threads, 2)
	require.Len(t, export.Posts, 5)

	report, err := env.blog.ImportDisqus(ctx, export, true)
	require.NoError(t, err)
	require.Equal(t, 2, report.Imported)
	n, err := env.store.Count(ctx, docstore.NewQuery(model.CollComments))
	require.NoError(t, err)
	require.Zero(t, n, "dry run writes nothing")

	report, err = env.blog.ImportDisqus(ctx, export, false)
	require.NoError(t, err)
	require.Equal(t, &ImportReport{
		Imported:       2,
		SkippedDeleted: 1,
		SkippedSpam:    1,
		SkippedNoPost:  1,
	}, report)

	var cmts []*model.Comment
	require.NoError(t, env.store.Find(ctx, docstore.NewQuery(model.CollComments).OrderBy("created_at", docstore.Asc), &cmts))
	require.Len(t, cmts, 2)
	require.Equal(t, "Lina", cmts[0].Author.Name)
	require.Equal(t, "Great post", cmts[0].Content)
	require.True(t, cmts[0].IsApproved)
	require.Nil(t, cmts[0].ParentID)
	require.NotNil(t, cmts[1].ParentID)
	require.Equal(t, cmts[0].ID, *cmts[1].ParentID)

	require.EqualValues(t, 2, env.post(t, "p1").CommentsCount)
}

func TestSlugFromLink(t *testing.T) {
	for link, want := range map[string]string{
		"https://agency.test/blog/go-tips":   "go-tips",
		"https://agency.test/blog/go-tips/":  "go-tips",
		"https://agency.test/p/%D8%B3%D9%84": "سل",
		"https://agency.test/":               "",
	} {
		require.Equal(t, want, slugFromLink(link), link)
	}
}
