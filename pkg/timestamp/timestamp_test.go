// ABOUTME: Tests for datetime parsing, formatting and clamping
// ABOUTME: Covers accepted wire forms, rejections and clamp properties

package timestamp

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	want := time.Date(1994, time.November, 15, 12, 45, 26, 0, time.UTC)

	t.Run("accepted forms", func(t *testing.T) {
		for _, in := range []string{
			"Tue, 15 Nov 1994 12:45:26 GMT",
			`"Tue, 15 Nov 1994 12:45:26 GMT"`,
			"  Tue, 15 Nov 1994 12:45:26 GMT ",
			"Tue, 15 Nov 1994 13:45:26 +0100",
			"Tuesday, 15-Nov-94 12:45:26 GMT",
			"Tue Nov 15 12:45:26 1994",
			"Tue, 15 Nov 1994 12:45:26 UTC",
			"Tue, 15 Nov 1994 07:45:26 EST",
			"Tue, 15 Nov 1994 04:45:26 PST",
			"Tue, 15 Nov 1994 05:45:26 PDT",
		} {
			got, err := Parse(in)
			require.NoError(t, err, in)
			assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
			assert.Equal(t, time.UTC, got.Location())
		}
	})

	t.Run("rejected forms", func(t *testing.T) {
		for _, in := range []string{
			"",
			`""`,
			"yesterday",
			"1994-11-15T12:45:26Z",
			"19941115124526",
			"Tue, 15 Nov 1994",
			"Tue, 15 Nov 1994 12:45:26 XYZ",
			"Tue, 15 Nov 1994 12:45:26 CET",
			"Tue, 15 Nov 1994 12:45:26 GMT+3",
			"Tuesday, 15-Nov-94 12:45:26 JST",
		} {
			_, err := Parse(in)
			require.Error(t, err, in)
			assert.True(t, errors.Is(err, ErrParse))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, in, perr.Input)
		}
	})
}

func TestParseSingleDigitDay(t *testing.T) {
	want := time.Date(1994, time.November, 5, 12, 45, 26, 0, time.UTC)

	for _, in := range []string{
		"Tue, 5 Nov 1994 12:45:26 GMT",
		"Tue, 05 Nov 1994 12:45:26 GMT",
		"Tue, 5 Nov 1994 13:45:26 +0100",
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	ts := time.Date(2013, time.March, 1, 8, 0, 5, 0, time.UTC)
	wire := Format(ts)
	assert.Equal(t, "Fri, 01 Mar 2013 08:00:05 GMT", wire)

	back, err := Parse(wire)
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))

	local := ts.In(time.FixedZone("X", 3600*5))
	assert.Equal(t, wire, Format(local))
}

func TestStorageRoundTrip(t *testing.T) {
	ts := time.Date(2009, time.July, 4, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "20090704235959", ToStorage(ts))

	back, err := FromStorage("20090704235959")
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))

	for _, bad := range []string{"", "2009070423595", "2009-07-04 23:59", "20091304235959"} {
		_, err := FromStorage(bad)
		assert.ErrorIs(t, err, ErrParse, bad)
	}
}

func TestClamp(t *testing.T) {
	first := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, first, Clamp(first.Add(-time.Hour), first, last))
	assert.Equal(t, last, Clamp(last.Add(time.Hour), first, last))
	assert.Equal(t, mid, Clamp(mid, first, last))
	assert.Equal(t, first, Clamp(first, first, last))
	assert.Equal(t, last, Clamp(last, first, last))

	t.Run("single instant range", func(t *testing.T) {
		assert.Equal(t, first, Clamp(mid, first, first))
		assert.Equal(t, first, Clamp(first.Add(-time.Second), first, first))
	})

	t.Run("idempotent and bounded", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		span := int64(last.Sub(first))
		for i := 0; i < 500; i++ {
			x := first.Add(time.Duration(rng.Int63n(3*span) - span))
			once := Clamp(x, first, last)
			assert.Equal(t, once, Clamp(once, first, last))
			assert.False(t, once.Before(first))
			assert.False(t, once.After(last))
		}
	})
}
