// Package corpus builds and persists the hybrid search index: token
// frequencies for lexical scoring plus optional dense vectors per document.
package corpus

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/vntext"
)

// indexVersion guards the on-disk format. A loaded index with a different
// version is treated as absent and rebuilt.
const indexVersion = 2

// Doc is the indexed form of a document.
type Doc struct {
	ID        string         `json:"id"`
	Kind      domain.Kind    `json:"kind"`
	Title     string         `json:"title"`
	URL       string         `json:"url"`
	Text      string         `json:"text"`
	Len       int            `json:"len"`
	TF        map[string]int `json:"tf"`
	Meta      domain.DocMeta `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	Vector    []float32      `json:"vector,omitempty"`
}

// Index is the full searchable corpus.
type Index struct {
	NDocs   int            `json:"n_docs"`
	DF      map[string]int `json:"df"`
	Docs    []Doc          `json:"docs"`
	BuiltAt time.Time      `json:"built_at"`
	Version int            `json:"version"`
}

// Build tokenizes the documents and computes term and document frequencies.
func Build(docs []domain.Document, builtAt time.Time) *Index {
	ix := &Index{
		DF:      make(map[string]int),
		Docs:    make([]Doc, 0, len(docs)),
		BuiltAt: builtAt,
		Version: indexVersion,
	}

	for _, d := range docs {
		tokens := d.Tokens
		if len(tokens) == 0 {
			tokens = vntext.Tokenize(d.Title + " " + d.Text)
		}

		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			ix.DF[term]++
		}

		ix.Docs = append(ix.Docs, Doc{
			ID:        d.ID,
			Kind:      d.Kind,
			Title:     d.Title,
			URL:       d.URL,
			Text:      d.Text,
			Len:       len(tokens),
			TF:        tf,
			Meta:      d.Meta,
			CreatedAt: d.CreatedAt,
		})
	}

	ix.NDocs = len(ix.Docs)
	return ix
}

// AttachVectors pairs dense vectors with documents positionally.
func (ix *Index) AttachVectors(vectors [][]float32) error {
	if len(vectors) != len(ix.Docs) {
		return fmt.Errorf("got %d vectors for %d docs", len(vectors), len(ix.Docs))
	}
	for i := range ix.Docs {
		ix.Docs[i].Vector = vectors[i]
	}
	return nil
}

// IDF returns the inverse document frequency of a term. Unknown terms score
// zero so they cannot inflate a document's rank.
func (ix *Index) IDF(term string) float64 {
	df := ix.DF[term]
	if df == 0 {
		return 0
	}
	return math.Log(1 + float64(ix.NDocs)/float64(df))
}

// SaveFile writes the index atomically: temp file in the same directory, then
// rename.
func (ix *Index) SaveFile(path string) error {
	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// LoadFile reads an index from disk. A missing file or a stale format yields
// domain.ErrIndexNotBuilt so callers rebuild instead of failing.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrIndexNotBuilt
		}
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", path, err)
	}
	if ix.Version != indexVersion {
		return nil, domain.ErrIndexNotBuilt
	}
	return &ix, nil
}
