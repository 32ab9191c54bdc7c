package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/portfolio-views/views-server/internal/store"
)

const key = "portfolio-views"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errUnreachable = errors.New("store unreachable")

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errUnreachable
}

func (failingStore) Set(context.Context, string, string) error {
	return errUnreachable
}

// blockingStore never answers before ctx is done.
type blockingStore struct{}

func (blockingStore) Get(ctx context.Context, _ string) (string, bool, error) {
	<-ctx.Done()
	return "", false, ctx.Err()
}

func (blockingStore) Set(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// barrierStore holds every Get until `readers` of them have arrived.
type barrierStore struct {
	*store.Memory
	reads sync.WaitGroup
}

func newBarrierStore(readers int) *barrierStore {
	b := &barrierStore{Memory: store.NewMemory()}
	b.reads.Add(readers)
	return b
}

func (b *barrierStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := b.Memory.Get(ctx, key)
	b.reads.Done()
	b.reads.Wait()
	return v, ok, err
}

func stored(t *testing.T, s *store.Memory) string {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	return v
}

func TestParse(t *testing.T) {
	tests := map[string]int64{
		"0":                    0,
		"1":                    1,
		"41":                   41,
		" 42\n":                42,
		"42abc":                42,
		"4.2":                  4,
		"":                     0,
		"abc":                  0,
		"-5":                   0,
		"+5":                   0,
		`"7"`:                  0,
		"99999999999999999999": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, Parse(in), "Parse(%q)", in)
	}
}

func TestIncrementFromEmpty(t *testing.T) {
	s := store.NewMemory()
	c := New(s, key, time.Second, nil)

	n, err := c.Increment(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "1", stored(t, s))

	n, err = c.Increment(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, "2", stored(t, s))
}

func TestIncrementFromExisting(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(context.Background(), key, "41"))

	n, err := New(s, key, time.Second, nil).Increment(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
	assert.Equal(t, "42", stored(t, s))
}

func TestIncrementFromGarbage(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(context.Background(), key, "not a number"))

	n, err := New(s, key, time.Second, nil).Increment(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "1", stored(t, s))
}

func TestIncrementStoreDown(t *testing.T) {
	n, err := New(failingStore{}, key, time.Second, nil).Increment(context.Background())

	assert.EqualValues(t, 1, n)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.ErrorIs(t, err, errUnreachable)
}

func TestIncrementTimesOut(t *testing.T) {
	c := New(blockingStore{}, key, 20*time.Millisecond, nil)

	start := time.Now()
	n, err := c.Increment(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, n)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIncrementLosesConcurrentUpdate(t *testing.T) {
	s := newBarrierStore(2)
	require.NoError(t, s.Set(context.Background(), key, "10"))
	c := New(s, key, time.Second, nil)

	var wg sync.WaitGroup
	results := make([]int64, 2)
	for i := range results {
		i := i // per-iteration copy; module targets go 1.21 (pre-1.22 loop semantics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Increment(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, []int64{11, 11}, results)
	assert.Equal(t, "11", stored(t, s.Memory))
}

func TestCurrentAndSet(t *testing.T) {
	s := store.NewMemory()
	c := New(s, key, time.Second, nil)
	ctx := context.Background()

	n, err := c.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, c.Set(ctx, 41))
	n, err = c.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 41, n)

	assert.Error(t, c.Set(ctx, -1))
	assert.Equal(t, "41", stored(t, s))

	_, err = New(failingStore{}, key, time.Second, nil).Current(ctx)
	assert.ErrorIs(t, err, errUnreachable)
}
