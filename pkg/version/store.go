// ABOUTME: Version store contracts and the revision locator
// ABOUTME: Single-round-trip temporal lookups with observation and parallel fan-in

package version

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrStoreUnavailable wraps every failure reported by a backing store
var ErrStoreUnavailable = errors.New("version store unavailable")

// Store answers the five temporal lookups. Each call touches the backing
// store once. A resource without a matching version yields (nil, nil).
type Store interface {
	First(ctx context.Context, res Resource) (*Version, error)
	Last(ctx context.Context, res Resource) (*Version, error)
	AtOrBefore(ctx context.Context, res Resource, moment time.Time) (*Version, error)
	After(ctx context.Context, res Resource, moment time.Time) (*Version, error)
	Before(ctx context.Context, res Resource, moment time.Time) (*Version, error)
}

// Catalog is a Store that can also resolve titles, fetch a specific
// version and enumerate a history.
type Catalog interface {
	Store

	// Resolve returns nil for unknown titles
	Resolve(ctx context.Context, title string) (*Resource, error)

	// ByID returns nil when id is not a version of res
	ByID(ctx context.Context, res Resource, id int64) (*Version, error)

	// List returns the whole history in ascending order
	List(ctx context.Context, res Resource) ([]Version, error)
}

// Writer is implemented by stores that accept new pages and versions
type Writer interface {
	PutResource(ctx context.Context, res Resource) error
	AddVersion(ctx context.Context, res Resource, v Version) error
}

// Observer receives one call per store query
type Observer interface {
	ObserveQuery(op string, duration time.Duration, found bool, err error)
}

// Locator wraps a Catalog with error classification and observation
type Locator struct {
	catalog   Catalog
	observers []Observer
}

// LocatorOption configures a Locator
type LocatorOption func(*Locator)

// WithObserver adds an observer; may be given more than once
func WithObserver(o Observer) LocatorOption {
	return func(l *Locator) {
		l.observers = append(l.observers, o)
	}
}

// NewLocator creates a locator over the given catalog
func NewLocator(c Catalog, opts ...LocatorOption) *Locator {
	l := &Locator{catalog: c}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// First returns the earliest version
func (l *Locator) First(ctx context.Context, res Resource) (*Version, error) {
	return l.lookup("first", func() (*Version, error) {
		return l.catalog.First(ctx, res)
	})
}

// Last returns the current head
func (l *Locator) Last(ctx context.Context, res Resource) (*Version, error) {
	return l.lookup("last", func() (*Version, error) {
		return l.catalog.Last(ctx, res)
	})
}

// AtOrBefore returns the version current at moment
func (l *Locator) AtOrBefore(ctx context.Context, res Resource, moment time.Time) (*Version, error) {
	return l.lookup("at_or_before", func() (*Version, error) {
		return l.catalog.AtOrBefore(ctx, res, moment)
	})
}

// After returns the first version strictly after moment
func (l *Locator) After(ctx context.Context, res Resource, moment time.Time) (*Version, error) {
	return l.lookup("after", func() (*Version, error) {
		return l.catalog.After(ctx, res, moment)
	})
}

// Before returns the last version strictly before moment
func (l *Locator) Before(ctx context.Context, res Resource, moment time.Time) (*Version, error) {
	return l.lookup("before", func() (*Version, error) {
		return l.catalog.Before(ctx, res, moment)
	})
}

// ByID returns a specific version of res
func (l *Locator) ByID(ctx context.Context, res Resource, id int64) (*Version, error) {
	return l.lookup("by_id", func() (*Version, error) {
		return l.catalog.ByID(ctx, res, id)
	})
}

// Resolve maps a title onto a resource
func (l *Locator) Resolve(ctx context.Context, title string) (*Resource, error) {
	start := time.Now()
	res, err := l.catalog.Resolve(ctx, title)
	l.observe("resolve", start, res != nil, err)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %w", ErrStoreUnavailable, title, err)
	}
	return res, nil
}

// List returns the full ascending history of res
func (l *Locator) List(ctx context.Context, res Resource) ([]Version, error) {
	start := time.Now()
	versions, err := l.catalog.List(ctx, res)
	l.observe("list", start, len(versions) > 0, err)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStoreUnavailable, err)
	}
	return versions, nil
}

// Range returns the first and last versions, queried in parallel. A resource
// without history yields (nil, nil).
func (l *Locator) Range(ctx context.Context, res Resource) (*Range, error) {
	var first, last *Version

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		first, err = l.First(gctx, res)
		return err
	})
	g.Go(func() (err error) {
		last, err = l.Last(gctx, res)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if first == nil || last == nil {
		return nil, nil
	}
	return &Range{First: *first, Last: *last}, nil
}

// Around returns the current, next and previous versions for a resolved
// moment, queried in parallel.
func (l *Locator) Around(ctx context.Context, res Resource, moment time.Time) (Neighbors, error) {
	var n Neighbors

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		n.Current, err = l.AtOrBefore(gctx, res, moment)
		return err
	})
	g.Go(func() (err error) {
		n.Next, err = l.After(gctx, res, moment)
		return err
	})
	g.Go(func() (err error) {
		n.Previous, err = l.Before(gctx, res, moment)
		return err
	})
	if err := g.Wait(); err != nil {
		return Neighbors{}, err
	}

	return n, nil
}

func (l *Locator) lookup(op string, fn func() (*Version, error)) (*Version, error) {
	start := time.Now()
	v, err := fn()
	l.observe(op, start, v != nil, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
	}
	return v, nil
}

func (l *Locator) observe(op string, start time.Time, found bool, err error) {
	d := time.Since(start)
	for _, o := range l.observers {
		o.ObserveQuery(op, d, found, err)
	}
}
