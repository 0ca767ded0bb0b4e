// ABOUTME: go-memdb schema for the in-memory version store
// ABOUTME: Compound (page, timestamp, revision) index drives ordered lookups

package memstore

import "github.com/hashicorp/go-memdb"

const (
	tblPages     = "pages"
	tblRevisions = "revisions"

	idxID       = "id"
	idxTitle    = "title"
	idxPageTime = "page_time"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblPages: {
			Name: tblPages,
			Indexes: map[string]*memdb.IndexSchema{
				idxID: {
					Name:    idxID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
				idxTitle: {
					Name:    idxTitle,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Title"},
				},
			},
		},
		tblRevisions: {
			Name: tblRevisions,
			Indexes: map[string]*memdb.IndexSchema{
				idxID: {
					Name:    idxID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
				idxPageTime: {
					Name:   idxPageTime,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "PageKey"},
							&memdb.StringFieldIndex{Field: "Stamp"},
							&memdb.StringFieldIndex{Field: "RevKey"},
						},
					},
				},
			},
		},
	},
}
