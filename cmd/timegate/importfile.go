package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// importFile is the YAML layout accepted by `timegate import` and
// `timegate server --seed`.
//
//	pages:
//	  - title: Main_Page
//	    page_id: 1
//	    categories: [Featured]
//	    embeds: [Template:Box]
//	    revisions:
//	      - id: 10
//	        timestamp: "20110201100000"
type importFile struct {
	Pages []importPage `yaml:"pages"`
}

type importPage struct {
	Title      string           `yaml:"title"`
	PageID     int64            `yaml:"page_id"`
	Categories []string         `yaml:"categories"`
	Embeds     []string         `yaml:"embeds"`
	Revisions  []importRevision `yaml:"revisions"`
}

type importRevision struct {
	ID        int64  `yaml:"id"`
	Timestamp string `yaml:"timestamp"`
}

func loadImportFile(path string) (*importFile, error) {
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	f := &importFile{}
	if err := yaml.Unmarshal(bytes, f); err != nil {
		return nil, fmt.Errorf("unmarshal import file: %w", err)
	}

	for _, p := range f.Pages {
		if p.Title == "" || p.PageID == 0 {
			return nil, fmt.Errorf("import file: page needs title and page_id")
		}
	}
	return f, nil
}

// apply writes every page and revision, returning the number of
// revisions written.
func (f *importFile) apply(ctx context.Context, w version.Writer) (int, error) {
	count := 0
	for _, p := range f.Pages {
		res := version.Resource{Title: p.Title, PageID: p.PageID, Categories: p.Categories}
		if err := w.PutResource(ctx, res); err != nil {
			return count, fmt.Errorf("put %q: %w", p.Title, err)
		}

		for _, r := range p.Revisions {
			ts, err := timestamp.FromStorage(r.Timestamp)
			if err != nil {
				return count, fmt.Errorf("revision %d of %q: %w", r.ID, p.Title, err)
			}
			if err := w.AddVersion(ctx, res, version.Version{ID: r.ID, Timestamp: ts}); err != nil {
				return count, fmt.Errorf("revision %d of %q: %w", r.ID, p.Title, err)
			}
			count++
		}
	}
	return count, nil
}

// embeds maps each page onto the templates it transcludes
func (f *importFile) embeds() map[string][]string {
	m := make(map[string][]string)
	for _, p := range f.Pages {
		if len(p.Embeds) > 0 {
			m[p.Title] = p.Embeds
		}
	}
	return m
}
