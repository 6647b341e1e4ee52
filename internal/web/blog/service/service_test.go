package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/blog/dao"
	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
)

var editor = events.Actor{ID: "user-1", Name: "Editor", Role: "editor"}

type recordingFeed struct {
	mu      sync.Mutex
	notices []string
	actions []string
}

func (f *recordingFeed) Notify(_ context.Context, kind, _, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, kind)
}

func (f *recordingFeed) Record(_ context.Context, _ events.Actor, action, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
}

type captureMailer struct {
	mu   sync.Mutex
	sent []*mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg *mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// tickingClock advances one second on every call
func tickingClock() Clock {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type testEnv struct {
	blog   *Blog
	store  *docstore.Memory
	feed   *recordingFeed
	mailer *captureMailer
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  docstore.NewMemory(),
		feed:   &recordingFeed{},
		mailer: &captureMailer{},
	}
	opts = append([]Option{
		WithFeed(env.feed),
		WithMailer(env.mailer, mail.NewTemplates("Agency", "https://agency.test")),
		WithClock(tickingClock()),
	}, opts...)
	env.blog = New(log.Logger, dao.New(log.Logger, env.store), opts...)
	return env
}

func (e *testEnv) category(t *testing.T, id string) *model.Category {
	t.Helper()
	cat := new(model.Category)
	require.NoError(t, e.store.Get(context.Background(), model.CollCategories, id, cat))
	return cat
}

func (e *testEnv) tag(t *testing.T, id string) *model.Tag {
	t.Helper()
	tag := new(model.Tag)
	require.NoError(t, e.store.Get(context.Background(), model.CollTags, id, tag))
	return tag
}

func (e *testEnv) post(t *testing.T, id string) *model.Post {
	t.Helper()
	post := new(model.Post)
	require.NoError(t, e.store.Get(context.Background(), model.CollPosts, id, post))
	return post
}
