// ABOUTME: Shared behaviour tests for version store backends
// ABOUTME: Every backend runs the same fixture through RunCatalogTests

package versiontest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/timegate/pkg/version"
)

// Backend is a store under test
type Backend interface {
	version.Catalog
	version.Writer
}

// Fixture instants
var (
	T1 = time.Date(2011, time.February, 1, 10, 0, 0, 0, time.UTC)
	T2 = time.Date(2012, time.March, 5, 12, 30, 0, 0, time.UTC)
	T3 = time.Date(2013, time.April, 9, 18, 45, 10, 0, time.UTC)
)

// Fixture resources
var (
	MainPage = version.Resource{Title: "Main_Page", PageID: 1, Categories: []string{"Featured", "Portals"}}
	Template = version.Resource{Title: "Template:Box", PageID: 2}
	Empty    = version.Resource{Title: "Empty", PageID: 3}
	Tied     = version.Resource{Title: "Tied", PageID: 4}
)

// Seed loads the fixture into w:
//
//	Main_Page     10@T1 11@T2 12@T3
//	Template:Box  20@T2
//	Empty         (no versions)
//	Tied          40@T2 41@T2
func Seed(t *testing.T, w version.Writer) {
	t.Helper()
	ctx := context.Background()

	for _, res := range []version.Resource{MainPage, Template, Empty, Tied} {
		require.NoError(t, w.PutResource(ctx, res))
	}

	for _, add := range []struct {
		res version.Resource
		v   version.Version
	}{
		{MainPage, version.Version{ID: 10, Timestamp: T1}},
		{MainPage, version.Version{ID: 11, Timestamp: T2}},
		{MainPage, version.Version{ID: 12, Timestamp: T3}},
		{Template, version.Version{ID: 20, Timestamp: T2}},
		{Tied, version.Version{ID: 40, Timestamp: T2}},
		{Tied, version.Version{ID: 41, Timestamp: T2}},
	} {
		require.NoError(t, w.AddVersion(ctx, add.res, add.v))
	}
}

func id(t *testing.T, v *version.Version) int64 {
	t.Helper()
	if v == nil {
		return 0
	}
	return v.ID
}

// RunCatalogTests seeds db and checks every lookup against the fixture
func RunCatalogTests(t *testing.T, db Backend) {
	ctx := context.Background()
	Seed(t, db)

	t.Run("resolve", func(t *testing.T) {
		res, err := db.Resolve(ctx, "Main_Page")
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, MainPage.PageID, res.PageID)
		assert.Equal(t, MainPage.Title, res.Title)
		assert.ElementsMatch(t, MainPage.Categories, res.Categories)

		res, err = db.Resolve(ctx, "No_Such_Page")
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("first and last", func(t *testing.T) {
		first, err := db.First(ctx, MainPage)
		require.NoError(t, err)
		last, err := db.Last(ctx, MainPage)
		require.NoError(t, err)
		assert.Equal(t, int64(10), id(t, first))
		assert.Equal(t, int64(12), id(t, last))
		assert.True(t, T1.Equal(first.Timestamp))
		assert.True(t, T3.Equal(last.Timestamp))

		first, err = db.First(ctx, Template)
		require.NoError(t, err)
		last, err = db.Last(ctx, Template)
		require.NoError(t, err)
		assert.Equal(t, *first, *last)
	})

	t.Run("resource without history", func(t *testing.T) {
		far := T3.Add(24 * time.Hour)
		lookups := map[string]func() (*version.Version, error){
			"first":        func() (*version.Version, error) { return db.First(ctx, Empty) },
			"last":         func() (*version.Version, error) { return db.Last(ctx, Empty) },
			"at_or_before": func() (*version.Version, error) { return db.AtOrBefore(ctx, Empty, far) },
			"after":        func() (*version.Version, error) { return db.After(ctx, Empty, T1.Add(-time.Hour)) },
			"before":       func() (*version.Version, error) { return db.Before(ctx, Empty, far) },
		}
		for name, fn := range lookups {
			v, err := fn()
			assert.NoError(t, err, name)
			assert.Nil(t, v, name)
		}

		versions, err := db.List(ctx, Empty)
		require.NoError(t, err)
		assert.Empty(t, versions)
	})

	t.Run("at or before", func(t *testing.T) {
		for _, tc := range []struct {
			moment time.Time
			want   int64
		}{
			{T1.Add(-time.Second), 0},
			{T1, 10},
			{T2.Add(-time.Second), 10},
			{T2, 11},
			{T2.Add(30 * time.Minute), 11},
			{T3, 12},
			{T3.Add(365 * 24 * time.Hour), 12},
		} {
			v, err := db.AtOrBefore(ctx, MainPage, tc.moment)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id(t, v), tc.moment.String())
		}
	})

	t.Run("after", func(t *testing.T) {
		for _, tc := range []struct {
			moment time.Time
			want   int64
		}{
			{T1.Add(-time.Hour), 10},
			{T1, 11},
			{T2, 12},
			{T3.Add(-time.Second), 12},
			{T3, 0},
		} {
			v, err := db.After(ctx, MainPage, tc.moment)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id(t, v), tc.moment.String())
		}
	})

	t.Run("before", func(t *testing.T) {
		for _, tc := range []struct {
			moment time.Time
			want   int64
		}{
			{T1, 0},
			{T1.Add(time.Second), 10},
			{T2, 10},
			{T3, 11},
			{T3.Add(time.Hour), 12},
		} {
			v, err := db.Before(ctx, MainPage, tc.moment)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id(t, v), tc.moment.String())
		}
	})

	t.Run("lookups stay within one resource", func(t *testing.T) {
		v, err := db.Before(ctx, Template, T3)
		require.NoError(t, err)
		assert.Equal(t, int64(20), id(t, v))

		v, err = db.After(ctx, Template, T2)
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = db.AtOrBefore(ctx, Template, T1)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("timestamp ties break on identifier", func(t *testing.T) {
		first, err := db.First(ctx, Tied)
		require.NoError(t, err)
		last, err := db.Last(ctx, Tied)
		require.NoError(t, err)
		current, err := db.AtOrBefore(ctx, Tied, T2)
		require.NoError(t, err)

		assert.Equal(t, int64(40), id(t, first))
		assert.Equal(t, int64(41), id(t, last))
		assert.Equal(t, int64(41), id(t, current))
	})

	t.Run("by id", func(t *testing.T) {
		v, err := db.ByID(ctx, MainPage, 11)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.True(t, T2.Equal(v.Timestamp))

		v, err = db.ByID(ctx, Template, 11)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("list", func(t *testing.T) {
		versions, err := db.List(ctx, MainPage)
		require.NoError(t, err)
		require.Len(t, versions, 3)
		for i, want := range []int64{10, 11, 12} {
			assert.Equal(t, want, versions[i].ID)
		}
		for i := 1; i < len(versions); i++ {
			assert.True(t, versions[i-1].Less(versions[i]))
		}
	})
}
