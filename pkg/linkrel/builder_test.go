// ABOUTME: Tests for relation collapsing and Link header rendering
// ABOUTME: Covers single, boundary and middle versions plus parse round trips

package linkrel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2011, time.February, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2012, time.March, 5, 12, 30, 0, 0, time.UTC)
	t3 = time.Date(2013, time.April, 9, 18, 45, 10, 0, time.UTC)

	v1 = &Entry{URI: "http://wiki.test/page/Main?oldid=1", Datetime: t1}
	v2 = &Entry{URI: "http://wiki.test/page/Main?oldid=2", Datetime: t2}
	v3 = &Entry{URI: "http://wiki.test/page/Main?oldid=3", Datetime: t3}
)

func rels(t *testing.T, set Set, uri string) string {
	t.Helper()
	for _, l := range set {
		if l.URI == uri {
			return l.Rel()
		}
	}
	t.Fatalf("no entry for %s in %s", uri, set)
	return ""
}

func TestBuildMiddle(t *testing.T) {
	set := Build(v1, v3, v2, v3, v1)

	require.Len(t, set, 3)
	assert.Equal(t, "first prev predecessor-version memento", rels(t, set, v1.URI))
	assert.Equal(t, "last next successor-version memento", rels(t, set, v3.URI))
	assert.Equal(t, "memento", rels(t, set, v2.URI))
	assert.Equal(t,
		`<http://wiki.test/page/Main?oldid=1>; rel="first prev predecessor-version memento"; datetime="Tue, 01 Feb 2011 10:00:00 GMT", `+
			`<http://wiki.test/page/Main?oldid=3>; rel="last next successor-version memento"; datetime="Tue, 09 Apr 2013 18:45:10 GMT", `+
			`<http://wiki.test/page/Main?oldid=2>; rel="memento"; datetime="Mon, 05 Mar 2012 12:30:00 GMT"`,
		set.String())
}

func TestBuildSingleVersion(t *testing.T) {
	set := Build(v1, v1, v1, nil, nil)

	require.Len(t, set, 1)
	assert.Equal(t, "first last memento", set[0].Rel())
	assert.Equal(t, t1, set[0].Datetime)
}

func TestBuildAtFirst(t *testing.T) {
	set := Build(v1, v3, v1, v2, nil)

	require.Len(t, set, 3)
	assert.Equal(t, "first memento", rels(t, set, v1.URI))
	assert.Equal(t, "last memento", rels(t, set, v3.URI))
	assert.Equal(t, "next successor-version memento", rels(t, set, v2.URI))
}

func TestBuildAtLast(t *testing.T) {
	set := Build(v1, v3, v3, nil, v2)

	require.Len(t, set, 3)
	assert.Equal(t, "first memento", rels(t, set, v1.URI))
	assert.Equal(t, "last memento", rels(t, set, v3.URI))
	assert.Equal(t, "prev predecessor-version memento", rels(t, set, v2.URI))
}

func TestBuildTwoVersions(t *testing.T) {
	set := Build(v1, v2, v2, nil, v1)

	require.Len(t, set, 2)
	assert.Equal(t, "first prev predecessor-version memento", rels(t, set, v1.URI))
	assert.Equal(t, "last memento", rels(t, set, v2.URI))
}

func TestBuildNeverRepeatsURI(t *testing.T) {
	// memento and prev coincide, which no consistent history produces
	set := Build(v1, v3, v2, nil, v2)

	require.Len(t, set, 3)
	assert.Equal(t, "prev predecessor-version memento", rels(t, set, v2.URI))

	seen := map[string]bool{}
	for _, l := range set {
		assert.False(t, seen[l.URI], "duplicate %s", l.URI)
		seen[l.URI] = true
	}
}

func TestBuildWithoutFirst(t *testing.T) {
	assert.Empty(t, Build(nil, v3, v2, nil, nil))
}

func TestFixedEntries(t *testing.T) {
	assert.Equal(t, `<http://wiki.test/page/Main>; rel="original latest-version timegate"`,
		Original("http://wiki.test/page/Main", REL_TIMEGATE).String())
	assert.Equal(t, `<http://wiki.test/timegate/Main>; rel="timegate"`,
		TimeGate("http://wiki.test/timegate/Main").String())
	assert.Equal(t, `<http://mementoweb.org/terms/donotnegotiate>; rel="type"`,
		DoNotNegotiate().String())
	assert.Equal(t,
		`<http://wiki.test/timemap/Main>; rel="timemap"; type="application/link-format"; `+
			`from="Tue, 01 Feb 2011 10:00:00 GMT"; until="Tue, 09 Apr 2013 18:45:10 GMT"`,
		TimeMap("http://wiki.test/timemap/Main", t1, t3).String())
	assert.Equal(t, `<http://wiki.test/timemap/Main>; rel="timemap"; type="application/link-format"`,
		TimeMap("http://wiki.test/timemap/Main", time.Time{}, time.Time{}).String())
}

func TestSetAddMerges(t *testing.T) {
	var set Set
	set.Add(Original("http://wiki.test/page/Main"))
	set.Add(TimeGate("http://wiki.test/page/Main"))
	set.Add(TimeGate("http://wiki.test/page/Main"))

	require.Len(t, set, 1)
	assert.Equal(t, "original latest-version timegate", set[0].Rel())
}

func TestParseRoundTrip(t *testing.T) {
	var set Set
	set.Add(Original("http://wiki.test/page/Main"))
	set.Add(TimeMap("http://wiki.test/timemap/Main", t1, t3))
	set = append(set, Build(v1, v3, v2, v3, v1)...)

	parsed, err := Parse(set.String())
	require.NoError(t, err)
	assert.Equal(t, set, parsed)

	l, ok := parsed.Find(REL_PREV)
	require.True(t, ok)
	assert.Equal(t, v1.URI, l.URI)
}

func TestParseQuotedComma(t *testing.T) {
	set, err := Parse(`<http://a.test/x,y>; rel="memento"; datetime="Tue, 15 Nov 1994 12:45:26 GMT",<http://b.test/>;rel=original`)
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "http://a.test/x,y", set[0].URI)
	assert.Equal(t, time.Date(1994, time.November, 15, 12, 45, 26, 0, time.UTC), set[0].Datetime)
	assert.Equal(t, []string{"original"}, set[1].Rels)
}

func TestParseDocument(t *testing.T) {
	var set Set
	set.Add(Original("http://wiki.test/page/Main;v"))
	set.Add(TimeMap("http://wiki.test/timemap/Main", t1, t3))
	set = append(set, Build(v1, v3, v2, v3, v1)...)

	parsed, err := Parse(set.Document())
	require.NoError(t, err)
	assert.Equal(t, set, parsed)

	empty, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseMalformed(t *testing.T) {
	for _, header := range []string{
		`http://a.test/; rel="memento"`,
		`<http://a.test/; rel="memento"`,
		`<http://a.test/>; rel`,
		`<http://a.test/>; rel="memento"; datetime="yesterday"`,
		`<http://a.test/>; rel="memento"; datetime="Tue, 15 Nov 1994 12:45:26 XYZ"`,
		`<http://a.test/>; rel="memento"; datetime="Tue, 15 Nov 1994`,
		`<http://a.test/>; rel="memento", plain text`,
	} {
		_, err := Parse(header)
		assert.ErrorIs(t, err, ErrMalformed, header)
	}
}
