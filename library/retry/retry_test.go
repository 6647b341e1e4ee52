package retry

import (
	"context"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
)

var fast = []Option{WithInitialInterval(time.Millisecond), WithMaxInterval(2 * time.Millisecond)}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("unavailable")
		}
		return "ok", nil
	}, fast...)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func() (int, error) {
		calls++
		return 0, errors.New("unavailable")
	}, append(fast, WithMaxTries(2))...)
	require.ErrorContains(t, err, "unavailable")
	require.Equal(t, 2, calls)
}

func TestDoPermanent(t *testing.T) {
	for _, perm := range []error{
		errors.Wrap(docstore.ErrNotFound, "get"),
		errors.Wrap(docstore.ErrAlreadyExists, "create"),
		apperr.Validation("bad"),
	} {
		calls := 0
		_, err := Do(context.Background(), func() (int, error) {
			calls++
			return 0, perm
		}, fast...)
		require.ErrorIs(t, err, perm)
		require.Equal(t, 1, calls)
	}
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("unavailable")
	}, fast...)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

type flakyStore struct {
	docstore.Store
	failures int
}

func (f *flakyStore) Get(ctx context.Context, coll, id string, dst any) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	return f.Store.Get(ctx, coll, id, dst)
}

type item struct {
	ID string `firestore:"id"`
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	require.NoError(t, mem.Create(ctx, "items", "a", &item{ID: "a"}))

	s := NewStore(&flakyStore{Store: mem, failures: 2}, fast...)
	got := new(item)
	require.NoError(t, s.Get(ctx, "items", "a", got))
	require.Equal(t, "a", got.ID)

	require.True(t, docstore.IsNotFound(s.Get(ctx, "items", "missing", got)))

	n, err := s.Count(ctx, docstore.NewQuery("items"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
