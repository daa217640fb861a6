package agent

import (
	"fmt"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// DefaultSuggestions is how many tools Suggest returns when no limit is given.
const DefaultSuggestions = 5

// Catalog indexes tool definitions for free-text search and serves their
// documentation.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Determinism: equal queries over an unchanged catalog return equal results.
type Catalog struct {
	index *index.InMemoryIndex
	docs  *tooldoc.InMemoryStore
}

// NewCatalog indexes tools with a BM25 searcher and registers docs keyed by
// tool ID. Docs for unknown IDs are ignored.
func NewCatalog(tools []model.Tool, docs map[string]tooldoc.DocEntry) (*Catalog, error) {
	idx := index.NewInMemoryIndex(index.IndexOptions{
		Searcher: search.NewBM25Searcher(search.BM25Config{}),
	})
	for _, t := range tools {
		if err := idx.RegisterTool(t, model.NewLocalBackend(t.Name)); err != nil {
			return nil, fmt.Errorf("index %s: %w", t.ToolID(), err)
		}
	}

	store := tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx, MaxExamples: 3})
	for _, t := range tools {
		entry, ok := docs[t.ToolID()]
		if !ok {
			continue
		}
		if err := store.RegisterDoc(t.ToolID(), entry); err != nil {
			return nil, fmt.Errorf("document %s: %w", t.ToolID(), err)
		}
	}
	return &Catalog{index: idx, docs: store}, nil
}

// Search returns up to limit tools ranked against query. An empty query
// lists tools in ID order.
func (c *Catalog) Search(query string, limit int) ([]index.Summary, error) {
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	return c.index.Search(query, limit)
}

// Describe returns the documentation for a tool ID at the given detail level.
func (c *Catalog) Describe(id string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	return c.docs.DescribeTool(id, level)
}

// Namespaces lists the indexed tool namespaces.
func (c *Catalog) Namespaces() ([]string, error) {
	return c.index.ListNamespaces()
}
