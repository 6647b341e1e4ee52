package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/auth/dao"
	"github.com/Laisky/agency-site/internal/web/auth/dto"
	"github.com/Laisky/agency-site/internal/web/auth/model"
	rdb "github.com/Laisky/agency-site/library/db/redis"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/jwt"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
	"github.com/Laisky/agency-site/library/throttle"
)

var (
	root     = events.Actor{ID: "root", Name: "Root", Role: "admin"}
	codeExpr = regexp.MustCompile(`\b\d{6}\b`)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
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

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	code := codeExpr.FindString(m.sent[len(m.sent)-1].Text)
	require.NotEmpty(t, code)
	return code
}

type testEnv struct {
	auth   *Auth
	store  *docstore.Memory
	clock  *fakeClock
	mailer *captureMailer
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	signer, err := jwt.New([]byte("0123456789abcdef0123"), "agency")
	require.NoError(t, err)

	env := &testEnv{
		store:  docstore.NewMemory(),
		clock:  &fakeClock{now: time.Now().UTC()},
		mailer: &captureMailer{},
	}
	opts = append([]Option{
		WithClock(env.clock.Now),
		WithMailer(env.mailer, mail.NewTemplates("Agency", "https://agency.test")),
	}, opts...)
	env.auth = New(log.Logger, dao.New(log.Logger, env.store), signer, opts...)
	return env
}

func (e *testEnv) user(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	u, err := e.auth.CreateUser(context.Background(), root, &dto.UserInput{
		Email: email, Name: "User", Password: "correct horse", Role: role,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, email string) *dto.LoginResult {
	t.Helper()
	ctx := context.Background()
	ch, err := e.auth.Login(ctx, &dto.LoginInput{Email: email, Password: "correct horse"})
	require.NoError(t, err)

	res, err := e.auth.VerifyLogin(ctx, &dto.VerifyInput{ChallengeID: ch.ChallengeID, Code: e.mailer.lastCode(t)})
	require.NoError(t, err)
	return res
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.user(t, "Admin@Agency.test", model.RoleAdmin)
	require.Equal(t, "admin@agency.test", u.Email)
	require.NotEqual(t, "correct horse", u.PasswordHash)

	_, err := env.auth.CreateUser(ctx, root, &dto.UserInput{Email: "admin@agency.test", Name: "Dup", Password: "12345678"})
	require.ErrorIs(t, err, model.ErrEmailTaken)

	for _, in := range []*dto.UserInput{
		{Email: "x@agency.test", Name: "X", Password: "short"},
		{Email: "bad", Name: "X", Password: "12345678"},
		{Email: "y@agency.test", Name: "", Password: "12345678"},
		{Email: "z@agency.test", Name: "Z", Password: "12345678", Role: "owner"},
	} {
		_, err = env.auth.CreateUser(ctx, root, in)
		require.Error(t, err, in.Email)
	}

	viewer, err := env.auth.CreateUser(ctx, root, &dto.UserInput{Email: "v@agency.test", Name: "V", Password: "12345678"})
	require.NoError(t, err)
	require.Equal(t, model.RoleViewer, viewer.Role)

	users, err := env.auth.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "editor@agency.test", model.RoleEditor)

	_, err := env.auth.Login(ctx, &dto.LoginInput{Email: "editor@agency.test", Password: "wrong pass"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, &dto.LoginInput{Email: "nobody@agency.test", Password: "correct horse"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	res := env.login(t, "editor@agency.test")
	require.NotEmpty(t, res.Token)
	require.NotNil(t, res.User.LastLoginAt)

	got, claims, err := env.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "editor", claims.Role)

	// the code is single use
	_, err = env.auth.VerifyLogin(ctx, &dto.VerifyInput{ChallengeID: u.ID, Code: env.mailer.lastCode(t)})
	require.ErrorIs(t, err, model.ErrOTPNotFound)

	require.NoError(t, env.auth.Logout(ctx, Actor(got), claims.SessionID))
	_, _, err = env.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, model.ErrSessionRevoked)

	_, _, err = env.auth.Authenticate(ctx, "garbage")
	require.Error(t, err)
}

func TestVerifyOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "a@agency.test", model.RoleEditor)

	issue := func() string {
		code, _, err := env.auth.issueOTP(ctx, u.ID)
		require.NoError(t, err)
		return code
	}
	wrong := func(code string) string {
		if code == "000000" {
			return "000001"
		}
		return "000000"
	}

	t.Run("mismatch then match", func(t *testing.T) {
		code := issue()
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, wrong(code)), model.ErrOTPMismatch)
		otp := new(model.OTP)
		require.NoError(t, env.store.Get(ctx, model.CollOTPs, u.ID, otp))
		require.EqualValues(t, 1, otp.Attempts)

		require.NoError(t, env.auth.verifyOTP(ctx, u.ID, code))
		require.ErrorIs(t, env.store.Get(ctx, model.CollOTPs, u.ID, otp), docstore.ErrNotFound)
	})

	t.Run("too many attempts", func(t *testing.T) {
		code := issue()
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, wrong(code)), model.ErrOTPMismatch)
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, wrong(code)), model.ErrOTPMismatch)
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, wrong(code)), model.ErrOTPTooManyAttempts)
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, code), model.ErrOTPNotFound)
	})

	t.Run("concurrent wrong guesses", func(t *testing.T) {
		code := issue()
		const guesses = 20
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			mismatch int
			tooMany  int
			notFound int
		)
		for i := 0; i < guesses; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := env.auth.verifyOTP(ctx, u.ID, wrong(code))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case errors.Is(err, model.ErrOTPMismatch):
					mismatch++
				case errors.Is(err, model.ErrOTPTooManyAttempts):
					tooMany++
				case errors.Is(err, model.ErrOTPNotFound):
					notFound++
				default:
					t.Errorf("unexpected verdict: %v", err)
				}
			}()
		}
		wg.Wait()

		maxAttempts := int(DefaultSettings().OTPMaxAttempts)
		require.Equal(t, maxAttempts-1, mismatch)
		require.Equal(t, 1, tooMany)
		require.Equal(t, guesses-maxAttempts, notFound)
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, code), model.ErrOTPNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		code := issue()
		env.clock.Add(5 * time.Minute)
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, code), model.ErrOTPExpired)
		require.ErrorIs(t, env.auth.verifyOTP(ctx, u.ID, code), model.ErrOTPNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		require.ErrorIs(t, env.auth.verifyOTP(ctx, "nobody", "123456"), model.ErrOTPNotFound)
	})
}

func TestOTPCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := newOTPCode()
		require.NoError(t, err)
		require.Regexp(t, `^\d{6}$`, code)
	}

	require.NotEqual(t, hashOTP("a", "123456"), hashOTP("b", "123456"))
}

func TestLoginUnknownEmailComparesPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "editor@agency.test", model.RoleEditor)

	var hashes []string
	original := comparePassword
	comparePassword = func(hash, pwd []byte) error {
		hashes = append(hashes, string(hash))
		return original(hash, pwd)
	}
	t.Cleanup(func() { comparePassword = original })

	_, err := env.auth.Login(ctx, &dto.LoginInput{Email: "nobody@agency.test", Password: "correct horse"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
	require.Equal(t, []string{unknownUserHash()}, hashes)

	_, err = env.auth.Login(ctx, &dto.LoginInput{Email: "editor@agency.test", Password: "wrong pass"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
	require.Len(t, hashes, 2)
	require.Equal(t, u.PasswordHash, hashes[1])
	require.NotEqual(t, hashes[0], hashes[1])
}

func TestLoginResendThrottle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv(t, WithLimiter(throttle.New(ctx)))
	env.user(t, "a@agency.test", model.RoleEditor)

	_, err := env.auth.Login(ctx, &dto.LoginInput{Email: "a@agency.test", Password: "correct horse"})
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, &dto.LoginInput{Email: "a@agency.test", Password: "correct horse"})
	require.ErrorIs(t, err, model.ErrOTPResendTooSoon)
}

func TestSessionsRevocation(t *testing.T) {
	mr := miniredis.RunT(t)
	stores := map[string]SessionStore{
		"docstore": nil,
		"redis":    rdb.NewDB(&redis.Options{Addr: mr.Addr()}),
	}

	for name, sessions := range stores {
		t.Run(name, func(t *testing.T) {
			var opts []Option
			if sessions != nil {
				opts = append(opts, WithSessions(sessions))
			}
			env := newTestEnv(t, opts...)
			ctx := context.Background()
			admin := env.user(t, name+"-admin@agency.test", model.RoleAdmin)
			editor := env.user(t, name+"-editor@agency.test", model.RoleEditor)

			first := env.login(t, admin.Email)
			env.clock.Add(2 * time.Minute)
			second := env.login(t, admin.Email)

			_, claims, err := env.auth.Authenticate(ctx, second.Token)
			require.NoError(t, err)
			require.NoError(t, env.auth.ChangePassword(ctx, Actor(admin), claims.SessionID, &dto.PasswordInput{
				OldPassword: "correct horse", NewPassword: "battery staple",
			}))

			_, _, err = env.auth.Authenticate(ctx, first.Token)
			require.ErrorIs(t, err, model.ErrSessionRevoked)
			_, _, err = env.auth.Authenticate(ctx, second.Token)
			require.NoError(t, err)

			require.ErrorIs(t, env.auth.ChangePassword(ctx, Actor(admin), claims.SessionID, &dto.PasswordInput{
				OldPassword: "correct horse", NewPassword: "whatever1",
			}), model.ErrInvalidCredentials)

			edSession := env.login(t, editor.Email)
			disabled := true
			_, err = env.auth.UpdateUser(ctx, Actor(admin), editor.ID, &dto.UserUpdate{Disabled: &disabled})
			require.NoError(t, err)
			_, _, err = env.auth.Authenticate(ctx, edSession.Token)
			require.ErrorIs(t, err, model.ErrSessionRevoked)
			_, err = env.auth.Login(ctx, &dto.LoginInput{Email: editor.Email, Password: "correct horse"})
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
		})
	}
}

func TestUpdateDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin@agency.test", model.RoleAdmin)
	other := env.user(t, "other@agency.test", model.RoleViewer)

	editor := model.RoleEditor
	u, err := env.auth.UpdateUser(ctx, Actor(admin), other.ID, &dto.UserUpdate{Role: &editor})
	require.NoError(t, err)
	require.Equal(t, model.RoleEditor, u.Role)

	viewer := model.RoleViewer
	_, err = env.auth.UpdateUser(ctx, Actor(admin), admin.ID, &dto.UserUpdate{Role: &viewer})
	require.ErrorIs(t, err, model.ErrSelfAction)

	bad := model.Role("root")
	_, err = env.auth.UpdateUser(ctx, Actor(admin), other.ID, &dto.UserUpdate{Role: &bad})
	require.Error(t, err)

	require.ErrorIs(t, env.auth.DeleteUser(ctx, Actor(admin), admin.ID), model.ErrSelfAction)
	require.NoError(t, env.auth.DeleteUser(ctx, Actor(admin), other.ID))
	require.True(t, docstore.IsNotFound(env.auth.DeleteUser(ctx, Actor(admin), other.ID)))
}
