// ABOUTME: Tests for the revision locator
// ABOUTME: Verifies range and neighbour fan-in, observation and error wrapping

package version_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nainya/timegate/pkg/version"
	"github.com/nainya/timegate/pkg/version/memstore"
	"github.com/nainya/timegate/pkg/version/versiontest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type query struct {
	op    string
	found bool
	err   error
}

type recorder struct {
	mu      sync.Mutex
	queries []query
}

func (r *recorder) ObserveQuery(op string, _ time.Duration, found bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query{op: op, found: found, err: err})
}

func (r *recorder) ops() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]bool, len(r.queries))
	for _, q := range r.queries {
		ops[q.op] = q.found
	}
	return ops
}

// brokenCatalog fails every query
type brokenCatalog struct {
	version.Catalog
	err error
}

func (b brokenCatalog) First(context.Context, version.Resource) (*version.Version, error) {
	return nil, b.err
}

func (b brokenCatalog) Last(context.Context, version.Resource) (*version.Version, error) {
	return nil, b.err
}

func (b brokenCatalog) AtOrBefore(context.Context, version.Resource, time.Time) (*version.Version, error) {
	return nil, b.err
}

func (b brokenCatalog) After(context.Context, version.Resource, time.Time) (*version.Version, error) {
	return nil, b.err
}

func (b brokenCatalog) Before(context.Context, version.Resource, time.Time) (*version.Version, error) {
	return nil, b.err
}

func (b brokenCatalog) Resolve(context.Context, string) (*version.Resource, error) {
	return nil, b.err
}

func newLocator(t *testing.T, opts ...version.LocatorOption) *version.Locator {
	t.Helper()
	s, err := memstore.New()
	require.NoError(t, err)
	versiontest.Seed(t, s)
	return version.NewLocator(s, opts...)
}

func TestRange(t *testing.T) {
	ctx := context.Background()
	l := newLocator(t)

	r, err := l.Range(ctx, versiontest.MainPage)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, int64(10), r.First.ID)
	assert.Equal(t, int64(12), r.Last.ID)
	assert.False(t, r.Single())

	r, err = l.Range(ctx, versiontest.Template)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.Single())

	r, err = l.Range(ctx, versiontest.Empty)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestRangeClamp(t *testing.T) {
	r := version.Range{
		First: version.Version{ID: 10, Timestamp: versiontest.T1},
		Last:  version.Version{ID: 12, Timestamp: versiontest.T3},
	}

	assert.Equal(t, versiontest.T1, r.Clamp(versiontest.T1.Add(-time.Hour)))
	assert.Equal(t, versiontest.T3, r.Clamp(versiontest.T3.Add(time.Hour)))
	assert.Equal(t, versiontest.T2, r.Clamp(versiontest.T2))
}

func TestAround(t *testing.T) {
	ctx := context.Background()
	l := newLocator(t)

	tests := []struct {
		name               string
		moment             time.Time
		current, next, prv int64
	}{
		{"at first", versiontest.T1, 10, 11, 0},
		{"between first and second", versiontest.T1.Add(time.Hour), 10, 11, 10},
		{"at middle", versiontest.T2, 11, 12, 10},
		{"at last", versiontest.T3, 12, 0, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := l.Around(ctx, versiontest.MainPage, tt.moment)
			require.NoError(t, err)
			require.NotNil(t, n.Current)
			assert.Equal(t, tt.current, n.Current.ID)
			assertID(t, tt.next, n.Next)
			assertID(t, tt.prv, n.Previous)
		})
	}
}

func assertID(t *testing.T, want int64, v *version.Version) {
	t.Helper()
	if want == 0 {
		assert.Nil(t, v)
		return
	}
	require.NotNil(t, v)
	assert.Equal(t, want, v.ID)
}

func TestObserver(t *testing.T) {
	rec := &recorder{}
	l := newLocator(t, version.WithObserver(rec))

	_, err := l.Around(context.Background(), versiontest.MainPage, versiontest.T1)
	require.NoError(t, err)

	ops := rec.ops()
	assert.Len(t, ops, 3)
	assert.True(t, ops["at_or_before"])
	assert.True(t, ops["after"])
	assert.False(t, ops["before"])
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")
	rec := &recorder{}
	l := version.NewLocator(brokenCatalog{err: cause}, version.WithObserver(rec))

	_, err := l.Range(ctx, versiontest.MainPage)
	assert.ErrorIs(t, err, version.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)

	_, err = l.Around(ctx, versiontest.MainPage, versiontest.T2)
	assert.ErrorIs(t, err, version.ErrStoreUnavailable)

	_, err = l.Resolve(ctx, "Main_Page")
	assert.ErrorIs(t, err, version.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, q := range rec.queries {
		assert.ErrorIs(t, q.err, cause)
	}
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "Template", versiontest.Template.Namespace())
	assert.Equal(t, "", versiontest.MainPage.Namespace())
}
