package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"

	"github.com/jamespreed/scholar-crawler/authorindex/index"
)

// Size of each page of results that is cached locally by the iterator.
const batchSize = 10

// Static and compile-time check to ensure InMemoryIndex implements Indexer.
var _ index.Indexer = (*InMemoryIndex)(nil)

type bleveDoc struct {
	Name        string
	Affiliation string
	Interests   string
	CitedBy     float64
}

// InMemoryIndex is an Indexer implementation that uses a bleve instance
// to index / catalogue and search author profiles but saves its index
// in memory.
type InMemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]*index.Document
	idx  bleve.Index
}

// NewInMemoryIndex instantiates and returns an author indexer that
// uses an in-memory bleve instance to index documents.
func NewInMemoryIndex() (*InMemoryIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}

	return &InMemoryIndex{
		idx:  idx,
		docs: make(map[string]*index.Document),
	}, nil
}

// Close releases / frees any previously allocated resources.
func (s *InMemoryIndex) Close() error {
	return s.idx.Close()
}

// Index adds a new document or updates an existing index entry
// in case of an existing document.
func (s *InMemoryIndex) Index(doc *index.Document) error {
	if doc.Key == "" {
		return fmt.Errorf("index: %w", index.ErrMissingKey)
	}

	doc.IndexedAt = time.Now()
	dCopy := copyDoc(doc)

	// Acquire a general lock to avoid data races while mutating index data.
	// Note: No other writes and reads are allowed for as long as this lock
	// is active.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.Index(dCopy.Key, makeBleveDoc(dCopy)); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	s.docs[dCopy.Key] = dCopy

	return nil
}

// FindByKey looks up a document by its canonical author key.
func (s *InMemoryIndex) FindByKey(key string) (*index.Document, error) {
	// Read lock allows other processes or goroutines to perform reads by
	// concurrently acquiring other read locks.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if doc, exists := s.docs[key]; exists {
		return copyDoc(doc), nil
	}

	return nil, fmt.Errorf("find by key: %w", index.ErrNotFound)
}

// Search performs a look up based on query and returns a result
// iterator if successful or an error otherwise.
func (s *InMemoryIndex) Search(q index.Query) (index.Iterator, error) {
	var bleveQuery query.Query

	switch q.Type {
	case index.QueryTypePhrase:
		bleveQuery = bleve.NewMatchPhraseQuery(q.Expression)
	default:
		bleveQuery = bleve.NewMatchQuery(q.Expression)
	}

	searchReq := bleve.NewSearchRequest(bleveQuery)
	searchReq.SortBy([]string{"-CitedBy", "-_score"})
	searchReq.Size = batchSize
	searchReq.From = int(q.Offset) // Initial result cursor point. it's always 0.

	sr, err := s.idx.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return &docIterator{
		idx:       s,
		searchReq: searchReq,
		searchRes: sr,
		cumIdx:    q.Offset,
	}, nil
}

func copyDoc(doc *index.Document) *index.Document {
	dCopy := new(index.Document)
	*dCopy = *doc

	if doc.Interests != nil {
		dCopy.Interests = append([]string(nil), doc.Interests...)
	}

	return dCopy
}

func makeBleveDoc(doc *index.Document) bleveDoc {
	return bleveDoc{
		Name:        doc.Name,
		Affiliation: doc.Affiliation,
		Interests:   strings.Join(doc.Interests, " "),
		CitedBy:     float64(doc.CitedBy),
	}
}
