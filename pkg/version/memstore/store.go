// ABOUTME: In-memory version store backed by go-memdb
// ABOUTME: Used for tests, demos and small deployments

package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// Fixed-width keys keep lexical and numeric order identical
const (
	pageKeyFormat = "%020d"
	revKeyFormat  = "%020d"
	minStamp      = "00000000000000"
)

type pageRecord struct {
	Key        string
	PageID     int64
	Title      string
	Categories []string
}

type revisionRecord struct {
	Key       string // PageKey/RevKey
	PageKey   string
	Stamp     string // timestamp.STORAGE_LAYOUT
	RevKey    string
	ID        int64
	Timestamp time.Time
}

// Store is a version.Catalog and version.Writer held in memory
type Store struct {
	db *memdb.MemDB
}

// New creates an empty store
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}
	return &Store{db: db}, nil
}

func pageKey(pageID int64) string {
	return fmt.Sprintf(pageKeyFormat, pageID)
}

func revKey(id int64) string {
	return fmt.Sprintf(revKeyFormat, id)
}

func (r *revisionRecord) version() *version.Version {
	return &version.Version{ID: r.ID, Timestamp: r.Timestamp}
}

// PutResource inserts or replaces a page
func (s *Store) PutResource(_ context.Context, res version.Resource) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	rec := &pageRecord{
		Key:        pageKey(res.PageID),
		PageID:     res.PageID,
		Title:      res.Title,
		Categories: append([]string(nil), res.Categories...),
	}
	if err := txn.Insert(tblPages, rec); err != nil {
		return fmt.Errorf("insert page %q: %w", res.Title, err)
	}

	txn.Commit()
	return nil
}

// AddVersion records a version of an existing page
func (s *Store) AddVersion(_ context.Context, res version.Resource, v version.Version) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	pk := pageKey(res.PageID)
	raw, err := txn.First(tblPages, idxID, pk)
	if err != nil {
		return fmt.Errorf("find page %d: %w", res.PageID, err)
	}
	if raw == nil {
		return fmt.Errorf("page %d not found", res.PageID)
	}

	ts := v.Timestamp.UTC().Truncate(time.Second)
	rk := revKey(v.ID)
	rec := &revisionRecord{
		Key:       pk + "/" + rk,
		PageKey:   pk,
		Stamp:     timestamp.ToStorage(ts),
		RevKey:    rk,
		ID:        v.ID,
		Timestamp: ts,
	}
	if err := txn.Insert(tblRevisions, rec); err != nil {
		return fmt.Errorf("insert revision %d: %w", v.ID, err)
	}

	txn.Commit()
	return nil
}

// Resolve finds a page by its namespace-qualified title
func (s *Store) Resolve(_ context.Context, title string) (*version.Resource, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblPages, idxTitle, title)
	if err != nil {
		return nil, fmt.Errorf("find page %q: %w", title, err)
	}
	if raw == nil {
		return nil, nil
	}

	rec := raw.(*pageRecord)
	return &version.Resource{
		Title:      rec.Title,
		PageID:     rec.PageID,
		Categories: append([]string(nil), rec.Categories...),
	}, nil
}

// First returns the earliest version of res
func (s *Store) First(_ context.Context, res version.Resource) (*version.Version, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	pk := pageKey(res.PageID)
	it, err := txn.LowerBound(tblRevisions, idxPageTime, pk, minStamp, "")
	if err != nil {
		return nil, fmt.Errorf("first revision: %w", err)
	}
	return firstOfPage(it, pk), nil
}

// Last returns the latest version of res
func (s *Store) Last(_ context.Context, res version.Resource) (*version.Version, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	pk := pageKey(res.PageID)
	raw, err := txn.Last(tblRevisions, idxPageTime+"_prefix", pk)
	if err != nil {
		return nil, fmt.Errorf("last revision: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*revisionRecord).version(), nil
}

// AtOrBefore returns the version with the greatest timestamp <= moment
func (s *Store) AtOrBefore(_ context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.reverseFrom(res, moment.Add(time.Second))
}

// Before returns the version with the greatest timestamp < moment
func (s *Store) Before(_ context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.reverseFrom(res, moment)
}

// After returns the version with the least timestamp > moment
func (s *Store) After(_ context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	pk := pageKey(res.PageID)
	bound := timestamp.ToStorage(moment.Add(time.Second))
	it, err := txn.LowerBound(tblRevisions, idxPageTime, pk, bound, "")
	if err != nil {
		return nil, fmt.Errorf("revision after %s: %w", bound, err)
	}
	return firstOfPage(it, pk), nil
}

// ByID returns version id of res
func (s *Store) ByID(_ context.Context, res version.Resource, id int64) (*version.Version, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblRevisions, idxID, pageKey(res.PageID)+"/"+revKey(id))
	if err != nil {
		return nil, fmt.Errorf("revision %d: %w", id, err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*revisionRecord).version(), nil
}

// List returns the history of res in ascending order
func (s *Store) List(_ context.Context, res version.Resource) ([]version.Version, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblRevisions, idxPageTime+"_prefix", pageKey(res.PageID))
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}

	var versions []version.Version
	for raw := it.Next(); raw != nil; raw = it.Next() {
		versions = append(versions, *raw.(*revisionRecord).version())
	}
	return versions, nil
}

// reverseFrom returns the greatest version whose stamp sorts strictly below
// the stamp of bound.
func (s *Store) reverseFrom(res version.Resource, bound time.Time) (*version.Version, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	pk := pageKey(res.PageID)
	stamp := timestamp.ToStorage(bound)
	it, err := txn.ReverseLowerBound(tblRevisions, idxPageTime, pk, stamp, "")
	if err != nil {
		return nil, fmt.Errorf("revision before %s: %w", stamp, err)
	}
	return firstOfPage(it, pk), nil
}

// firstOfPage returns the iterator's first record if it belongs to the page
func firstOfPage(it memdb.ResultIterator, pk string) *version.Version {
	raw := it.Next()
	if raw == nil {
		return nil
	}
	rec := raw.(*revisionRecord)
	if rec.PageKey != pk {
		return nil
	}
	return rec.version()
}
