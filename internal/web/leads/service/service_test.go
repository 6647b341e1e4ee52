package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/leads/dto"
	"github.com/Laisky/agency-site/internal/web/leads/model"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/db/redis"
	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
)

type catalog map[string]bool

func (c catalog) HasService(id string) bool { return c[id] }

type captureMailer struct {
	mu   sync.Mutex
	sent []*mail.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg *mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

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

type testEnv struct {
	svc    *Leads
	store  *docstore.Memory
	mailer *captureMailer
	feed   *recordingFeed
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  docstore.NewMemory(),
		mailer: &captureMailer{},
		feed:   &recordingFeed{},
	}

	var (
		mu  sync.Mutex
		now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	)
	opts = append([]Option{
		WithMailer(env.mailer, mail.NewTemplates("Agency", "https://agency.test"),
			[]mail.Address{{Email: "team@agency.test"}}),
		WithFeed(env.feed),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		}),
	}, opts...)
	env.svc = New(log.Logger, env.store, catalog{"web": true, "seo": true}, opts...)
	return env
}

func contact() *dto.LeadInput {
	return &dto.LeadInput{
		Name:    "Sara <b>K</b>",
		Email:   "Sara@Example.com",
		Message: "We need a landing page & a blog",
	}
}

func TestSubmitContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lead, err := env.svc.Submit(ctx, model.KindContact, contact(), dto.Client{IP: "10.0.0.1", Lang: i18n.AR})
	require.NoError(t, err)
	require.Equal(t, "Sara K", lead.Name)
	require.Equal(t, "sara@example.com", lead.Email)
	require.Equal(t, "We need a landing page & a blog", lead.Message)
	require.Equal(t, model.StatusNew, lead.Status)
	require.Equal(t, i18n.AR, lead.Language)

	stored := new(model.Lead)
	require.NoError(t, env.store.Get(ctx, model.CollLeads, lead.ID, stored))
	require.Equal(t, lead.Email, stored.Email)

	require.Len(t, env.mailer.sent, 2)
	require.Equal(t, "team@agency.test", env.mailer.sent[0].To[0].Email)
	require.Equal(t, "sara@example.com", env.mailer.sent[1].To[0].Email)
	require.Contains(t, env.mailer.sent[1].Subject, "شكرًا")
	require.Equal(t, []string{"lead"}, env.feed.notices)
	require.Equal(t, []string{"lead.create"}, env.feed.actions)

	require.Contains(t, Receipt(lead).Message, "شكرًا")
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := map[string]func(in *dto.LeadInput){
		"no name":      func(in *dto.LeadInput) { in.Name = "  " },
		"bad email":    func(in *dto.LeadInput) { in.Email = "nope" },
		"no message":   func(in *dto.LeadInput) { in.Message = "" },
		"long message": func(in *dto.LeadInput) { in.Message = strings.Repeat("a", maxMessageLen+1) },
		"bad phone":    func(in *dto.LeadInput) { in.Phone = "call me" },
		"bad language": func(in *dto.LeadInput) { in.Language = "fr" },
		"null byte":    func(in *dto.LeadInput) { in.Company = "a\x00b" },
		"markup only":  func(in *dto.LeadInput) { in.Message = "<script>x</script>" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := contact()
			mutate(in)
			_, err := env.svc.Submit(ctx, model.KindContact, in, dto.Client{})
			require.True(t, apperr.IsValidation(err), err)
		})
	}

	_, err := env.svc.Submit(ctx, "newsletter", contact(), dto.Client{})
	require.True(t, apperr.IsValidation(err))

	in := contact()
	in.Phone = "+966 (50) 123-4567"
	_, err = env.svc.Submit(ctx, model.KindContact, in, dto.Client{})
	require.NoError(t, err)
}

func TestSubmitQuote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := contact()
	in.Message = ""
	in.Services = []string{"WEB", "seo", "web"}
	in.Budget = "5k_15k"
	in.Timeline = "1_month"
	lead, err := env.svc.Submit(ctx, model.KindQuote, in, dto.Client{})
	require.NoError(t, err)
	require.Equal(t, []string{"web", "seo"}, lead.Services)
	require.Equal(t, i18n.EN, lead.Language)

	for _, mutate := range []func(in *dto.LeadInput){
		func(in *dto.LeadInput) { in.Services = nil },
		func(in *dto.LeadInput) { in.Services = []string{"crypto"} },
		func(in *dto.LeadInput) { in.Budget = "a lot" },
		func(in *dto.LeadInput) { in.Timeline = "" },
	} {
		bad := *in
		mutate(&bad)
		_, err = env.svc.Submit(ctx, model.KindQuote, &bad, dto.Client{})
		require.True(t, apperr.IsValidation(err), err)
	}
}

func TestSubmitMailFailureKeepsLead(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errors.New("postmark: 500")

	lead, err := env.svc.Submit(context.Background(), model.KindContact, contact(), dto.Client{})
	require.NoError(t, err)
	require.NoError(t, env.store.Get(context.Background(), model.CollLeads, lead.ID, new(model.Lead)))
	require.Len(t, env.mailer.sent, 2)
}

func TestSubmitRateLimitAndOutbox(t *testing.T) {
	mr := miniredis.RunT(t)
	db := redis.NewDB(&goredis.Options{Addr: mr.Addr()})
	env := newTestEnv(t, WithLimiter(db, 2), WithOutbox(db))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.svc.Submit(ctx, model.KindContact, contact(), dto.Client{IP: "10.0.0.9"})
		require.NoError(t, err)
	}
	_, err := env.svc.Submit(ctx, model.KindContact, contact(), dto.Client{IP: "10.0.0.9"})
	require.ErrorIs(t, err, apperr.ErrRateLimited)

	last, err := env.svc.Submit(ctx, model.KindContact, contact(), dto.Client{IP: "10.0.0.10"})
	require.NoError(t, err)

	queued, err := mr.List(redis.KeyLeadOutbox)
	require.NoError(t, err)
	require.Len(t, queued, 3)

	got := new(model.Lead)
	require.NoError(t, gutils.JSON.UnmarshalFromString(queued[2], got))
	require.Equal(t, last.ID, got.ID)
	require.Equal(t, last.Email, got.Email)
}

func TestAdminLeads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := events.Actor{ID: "u1", Name: "Admin"}

	first, err := env.svc.Submit(ctx, model.KindContact, contact(), dto.Client{})
	require.NoError(t, err)
	quote := contact()
	quote.Services, quote.Budget, quote.Timeline = []string{"seo"}, "not_sure", "flexible"
	second, err := env.svc.Submit(ctx, model.KindQuote, quote, dto.Client{})
	require.NoError(t, err)

	list, err := env.svc.List(ctx, &dto.LeadCfg{})
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	require.Equal(t, second.ID, list.Items[0].ID)

	list, err = env.svc.List(ctx, &dto.LeadCfg{Kind: model.KindQuote})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)

	_, err = env.svc.List(ctx, &dto.LeadCfg{Status: "hot"})
	require.True(t, apperr.IsValidation(err))

	lead, err := env.svc.UpdateStatus(ctx, admin, first.ID, &dto.StatusInput{Status: model.StatusContacted, Note: "called"})
	require.NoError(t, err)
	require.Equal(t, model.StatusContacted, lead.Status)

	list, err = env.svc.List(ctx, &dto.LeadCfg{Status: model.StatusNew})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)

	_, err = env.svc.UpdateStatus(ctx, admin, first.ID, &dto.StatusInput{Status: "maybe"})
	require.True(t, apperr.IsValidation(err))

	require.NoError(t, env.svc.Delete(ctx, admin, first.ID))
	require.True(t, docstore.IsNotFound(env.svc.Delete(ctx, admin, first.ID)))
	require.Contains(t, env.feed.actions, "lead.contacted")
	require.Contains(t, env.feed.actions, "lead.delete")
}
