package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	ID        string    `firestore:"id"`
	Title     string    `firestore:"title"`
	Status    string    `firestore:"status"`
	Views     int       `firestore:"views"`
	Tags      []string  `firestore:"tags"`
	ParentID  *string   `firestore:"parent_id"`
	CreatedAt time.Time `firestore:"created_at"`
	Author    testUser  `firestore:"author"`
	Internal  string    `firestore:"-"`
}

type testUser struct {
	Name string `firestore:"name"`
}

func seed(t *testing.T, m *Memory) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	parent := "a"
	docs := []testDoc{
		{ID: "a", Title: "alpha", Status: "published", Views: 3, Tags: []string{"go", "web"}, CreatedAt: base, Author: testUser{Name: "ann"}},
		{ID: "b", Title: "beta", Status: "draft", Views: 1, Tags: []string{"go"}, CreatedAt: base.Add(time.Hour), ParentID: &parent},
		{ID: "c", Title: "gamma", Status: "published", Views: 7, CreatedAt: base.Add(2 * time.Hour), ParentID: &parent},
	}
	for i := range docs {
		require.NoError(t, m.Create(ctx, "docs", docs[i].ID, &docs[i]))
	}
}

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m)

	got := new(testDoc)
	require.NoError(t, m.Get(ctx, "docs", "a", got))
	require.Equal(t, "alpha", got.Title)
	require.Equal(t, []string{"go", "web"}, got.Tags)
	require.Equal(t, "ann", got.Author.Name)
	require.Equal(t, 2024, got.CreatedAt.Year())

	// returned documents are copies
	got.Tags[0] = "changed"
	again := new(testDoc)
	require.NoError(t, m.Get(ctx, "docs", "a", again))
	require.Equal(t, "go", again.Tags[0])

	err := m.Create(ctx, "docs", "a", &testDoc{ID: "a"})
	require.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, m.Set(ctx, "docs", "a", &testDoc{ID: "a", Title: "alpha2"}))
	require.NoError(t, m.Get(ctx, "docs", "a", got))
	require.Equal(t, "alpha2", got.Title)

	require.NoError(t, m.Delete(ctx, "docs", "a"))
	require.True(t, IsNotFound(m.Get(ctx, "docs", "a", got)))
	require.NoError(t, m.Delete(ctx, "docs", "a"))
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m)

	require.NoError(t, m.Update(ctx, "docs", "a",
		Increment("views", 2),
		Set("title", "renamed"),
		Set("author.name", "bob"),
		ArrayUnion("tags", "web", "cloud"),
		ArrayRemove("tags", "go"),
	))

	got := new(testDoc)
	require.NoError(t, m.Get(ctx, "docs", "a", got))
	require.Equal(t, 5, got.Views)
	require.Equal(t, "renamed", got.Title)
	require.Equal(t, "bob", got.Author.Name)
	require.Equal(t, []string{"web", "cloud"}, got.Tags)

	require.NoError(t, m.Update(ctx, "docs", "b", Set("parent_id", nil)))
	require.NoError(t, m.Get(ctx, "docs", "b", got))
	require.Nil(t, got.ParentID)

	err := m.Update(ctx, "docs", "missing", Increment("views", 1))
	require.True(t, IsNotFound(err))

	err = m.Update(ctx, "docs", "a", Set("nope", 1))
	require.Error(t, err)
}

func TestMemoryFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m)

	var published []*testDoc
	require.NoError(t, m.Find(ctx, NewQuery("docs").
		Where("status", OpEq, "published").
		OrderBy("created_at", Desc), &published))
	require.Len(t, published, 2)
	require.Equal(t, "c", published[0].ID)
	require.Equal(t, "a", published[1].ID)

	var children []testDoc
	require.NoError(t, m.Find(ctx, NewQuery("docs").Where("parent_id", OpEq, "a").OrderBy("created_at", Asc), &children))
	require.Len(t, children, 2)
	require.Equal(t, "b", children[0].ID)

	var roots []testDoc
	require.NoError(t, m.Find(ctx, NewQuery("docs").Where("parent_id", OpEq, nil), &roots))
	require.Len(t, roots, 1)
	require.Equal(t, "a", roots[0].ID)

	var tagged []testDoc
	require.NoError(t, m.Find(ctx, NewQuery("docs").Where("tags", OpArrayContains, "go"), &tagged))
	require.Len(t, tagged, 2)

	var in []testDoc
	require.NoError(t, m.Find(ctx, NewQuery("docs").Where("id", OpIn, []string{"a", "c"}), &in))
	require.Len(t, in, 2)

	var popular []testDoc
	require.NoError(t, m.Find(ctx, NewQuery("docs").Where("views", OpGte, 3).OrderBy("views", Asc), &popular))
	require.Len(t, popular, 2)
	require.Equal(t, 3, popular[0].Views)

	var page []testDoc
	require.NoError(t, m.Find(ctx, NewQuery("docs").OrderBy("created_at", Asc).Page(1, 2), &page))
	require.Len(t, page, 1)
	require.Equal(t, "c", page[0].ID)

	n, err := m.Count(ctx, NewQuery("docs").Where("status", OpNe, "draft").WithLimit(1))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestMemoryTransactionRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m)

	boom := errors.New("boom")
	err := m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		doc := new(testDoc)
		if err := tx.Get("docs", "a", doc); err != nil {
			return err
		}
		if err := tx.Update("docs", "a", Increment("views", 10)); err != nil {
			return err
		}
		if err := tx.Create("docs", "d", &testDoc{ID: "d"}); err != nil {
			return err
		}
		_ = tx.Delete("docs", "b")
		return boom
	})
	require.ErrorIs(t, err, boom)

	got := new(testDoc)
	require.NoError(t, m.Get(ctx, "docs", "a", got))
	require.Equal(t, 3, got.Views)
	require.True(t, IsNotFound(m.Get(ctx, "docs", "d", got)))
	require.NoError(t, m.Get(ctx, "docs", "b", got))

	err = m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update("docs", "a", Increment("views", 10))
	})
	require.NoError(t, err)
	require.NoError(t, m.Get(ctx, "docs", "a", got))
	require.Equal(t, 13, got.Views)
}

func TestMemoryWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	changes, err := m.Watch(ctx, "docs")
	require.NoError(t, err)

	require.NoError(t, m.Create(ctx, "docs", "x", &testDoc{ID: "x"}))
	require.NoError(t, m.Update(ctx, "docs", "x", Increment("views", 1)))
	require.NoError(t, m.Delete(ctx, "docs", "x"))
	require.NoError(t, m.Create(ctx, "other", "y", &testDoc{ID: "y"}))

	for _, want := range []ChangeKind{ChangeAdded, ChangeModified, ChangeRemoved} {
		select {
		case c := <-changes:
			require.Equal(t, want, c.Kind)
			require.Equal(t, "x", c.ID)
		case <-time.After(time.Second):
			t.Fatalf("no change %s", want)
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-changes
		return !ok
	}, time.Second, 10*time.Millisecond)
}
