package main

import (
	"fmt"

	"github.com/nainya/timegate/internal/config"
	"github.com/nainya/timegate/internal/server"
	"github.com/nainya/timegate/pkg/version"
	"github.com/nainya/timegate/pkg/version/memstore"
	"github.com/nainya/timegate/pkg/version/mongostore"
	"github.com/nainya/timegate/pkg/version/sqlstore"
)

// backend is an opened version store. writer is nil for read-only
// backends.
type backend struct {
	catalog version.Catalog
	writer  version.Writer
	close   func() error
}

func openStore(conf *config.Store) (*backend, error) {
	switch conf.Backend {
	case config.BackendSQLite:
		s, err := sqlstore.Open(conf.SQLitePath, sqlstore.WithMkdirAll())
		if err != nil {
			return nil, err
		}
		return &backend{catalog: s, writer: s, close: s.Close}, nil

	case config.BackendMemory:
		s, err := memstore.New()
		if err != nil {
			return nil, err
		}
		return &backend{catalog: s, writer: s, close: func() error { return nil }}, nil

	case config.BackendMongo:
		s, err := mongostore.Dial(&mongostore.Config{
			ConnectionURI:     conf.MongoURI,
			Database:          conf.MongoDatabase,
			ConnectionTimeout: config.DefaultMongoConnectionTimeout,
			PingTimeout:       config.DefaultMongoPingTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &backend{catalog: s, writer: s, close: s.Close}, nil

	case config.BackendRemote:
		s, conn, err := server.DialRemoteStore(conf.RemoteAddr)
		if err != nil {
			return nil, err
		}
		return &backend{catalog: s, close: conn.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", conf.Backend)
	}
}
