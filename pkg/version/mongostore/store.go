// ABOUTME: MongoDB version store
// ABOUTME: Every temporal lookup is one FindOne with a sort on (timestamp, rev_id)

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/nainya/timegate/pkg/version"
)

const (
	// ColPages holds one document per page
	ColPages = "pages"
	// ColRevisions holds one document per version
	ColRevisions = "revisions"
)

// Config is the configuration for dialing a Store
type Config struct {
	ConnectionURI     string        `yaml:"ConnectionURI"`
	Database          string        `yaml:"Database"`
	ConnectionTimeout time.Duration `yaml:"ConnectionTimeout"`
	PingTimeout       time.Duration `yaml:"PingTimeout"`
}

type pageDoc struct {
	PageID     int64    `bson:"page_id"`
	Title      string   `bson:"title"`
	Categories []string `bson:"categories"`
}

type revisionDoc struct {
	ID        int64     `bson:"rev_id"`
	PageID    int64     `bson:"page_id"`
	Timestamp time.Time `bson:"timestamp"`
}

var collectionIndexes = map[string][]mongo.IndexModel{
	ColPages: {
		{
			Keys:    bson.D{{Key: "page_id", Value: int32(1)}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "title", Value: int32(1)}},
			Options: options.Index().SetUnique(true),
		},
	},
	ColRevisions: {
		{
			Keys: bson.D{
				{Key: "page_id", Value: int32(1)},
				{Key: "timestamp", Value: int32(1)},
				{Key: "rev_id", Value: int32(1)},
			},
		},
		{
			Keys:    bson.D{{Key: "rev_id", Value: int32(1)}},
			Options: options.Index().SetUnique(true),
		},
	},
}

var (
	ascending  = bson.D{{Key: "timestamp", Value: 1}, {Key: "rev_id", Value: 1}}
	descending = bson.D{{Key: "timestamp", Value: -1}, {Key: "rev_id", Value: -1}}
)

// Store is a version.Catalog and version.Writer over MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Dial connects, pings and ensures indexes
func Dial(conf *Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.PingTimeout)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(conf.Database)
	for name, indexes := range collectionIndexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}

	return &Store{client: client, db: db}, nil
}

// Close disconnects the client
func (s *Store) Close() error {
	if err := s.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}
	return nil
}

// Drop removes the database; used by tests
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// PutResource inserts or replaces a page
func (s *Store) PutResource(ctx context.Context, res version.Resource) error {
	doc := pageDoc{PageID: res.PageID, Title: res.Title, Categories: res.Categories}
	if doc.Categories == nil {
		doc.Categories = []string{}
	}
	_, err := s.db.Collection(ColPages).ReplaceOne(ctx,
		bson.M{"page_id": res.PageID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert page %q: %w", res.Title, err)
	}
	return nil
}

// AddVersion records a version of an existing page
func (s *Store) AddVersion(ctx context.Context, res version.Resource, v version.Version) error {
	n, err := s.db.Collection(ColPages).CountDocuments(ctx, bson.M{"page_id": res.PageID})
	if err != nil {
		return fmt.Errorf("find page %d: %w", res.PageID, err)
	}
	if n == 0 {
		return fmt.Errorf("page %d not found", res.PageID)
	}

	_, err = s.db.Collection(ColRevisions).InsertOne(ctx, revisionDoc{
		ID:        v.ID,
		PageID:    res.PageID,
		Timestamp: v.Timestamp.UTC().Truncate(time.Second),
	})
	if err != nil {
		return fmt.Errorf("insert revision %d: %w", v.ID, err)
	}
	return nil
}

// Resolve finds a page by its namespace-qualified title
func (s *Store) Resolve(ctx context.Context, title string) (*version.Resource, error) {
	result := s.db.Collection(ColPages).FindOne(ctx, bson.M{"title": title})
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, nil
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("resolve %q: %w", title, result.Err())
	}

	var doc pageDoc
	if err := result.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &version.Resource{Title: doc.Title, PageID: doc.PageID, Categories: doc.Categories}, nil
}

// First returns the earliest version of res
func (s *Store) First(ctx context.Context, res version.Resource) (*version.Version, error) {
	return s.findOne(ctx, bson.M{"page_id": res.PageID}, ascending)
}

// Last returns the latest version of res
func (s *Store) Last(ctx context.Context, res version.Resource) (*version.Version, error) {
	return s.findOne(ctx, bson.M{"page_id": res.PageID}, descending)
}

// AtOrBefore returns the version with the greatest timestamp <= moment
func (s *Store) AtOrBefore(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.findOne(ctx, bson.M{
		"page_id":   res.PageID,
		"timestamp": bson.M{"$lte": moment.UTC()},
	}, descending)
}

// After returns the version with the least timestamp > moment
func (s *Store) After(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.findOne(ctx, bson.M{
		"page_id":   res.PageID,
		"timestamp": bson.M{"$gt": moment.UTC()},
	}, ascending)
}

// Before returns the version with the greatest timestamp < moment
func (s *Store) Before(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.findOne(ctx, bson.M{
		"page_id":   res.PageID,
		"timestamp": bson.M{"$lt": moment.UTC()},
	}, descending)
}

// ByID returns version id of res
func (s *Store) ByID(ctx context.Context, res version.Resource, id int64) (*version.Version, error) {
	return s.findOne(ctx, bson.M{"page_id": res.PageID, "rev_id": id}, ascending)
}

// List returns the history of res in ascending order
func (s *Store) List(ctx context.Context, res version.Resource) ([]version.Version, error) {
	cursor, err := s.db.Collection(ColRevisions).Find(ctx,
		bson.M{"page_id": res.PageID}, options.Find().SetSort(ascending))
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}

	var docs []revisionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode revisions: %w", err)
	}

	versions := make([]version.Version, 0, len(docs))
	for _, doc := range docs {
		versions = append(versions, doc.version())
	}
	return versions, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M, sort bson.D) (*version.Version, error) {
	result := s.db.Collection(ColRevisions).FindOne(ctx, filter, options.FindOne().SetSort(sort))
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, nil
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("find revision: %w", result.Err())
	}

	var doc revisionDoc
	if err := result.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode revision: %w", err)
	}
	v := doc.version()
	return &v, nil
}

func (d revisionDoc) version() version.Version {
	return version.Version{ID: d.ID, Timestamp: d.Timestamp.UTC()}
}
