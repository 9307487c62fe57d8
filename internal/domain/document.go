package domain

import "time"

// Kind classifies a corpus document.
type Kind string

const (
	// KindArticle is a knowledge-base article (markdown docs, FAQ chunks).
	KindArticle Kind = "article"
	// KindListing is an indexed rental listing.
	KindListing Kind = "listing"
	// KindPackage is a paid-package pricing document.
	KindPackage Kind = "package"
)

// DocMeta carries the structured fields used for metadata-aware ranking.
type DocMeta struct {
	Category Category  `json:"category,omitempty"`
	PriceMil float64   `json:"price_mil,omitempty"`
	AreaM2   float64   `json:"area_m2,omitempty"`
	Province string    `json:"province,omitempty"`
	District string    `json:"district,omitempty"`
	Features []Feature `json:"features,omitempty"`
}

// Document is one immutable entry of the retrieval corpus.
// Rebuilt wholesale by the corpus builder; never mutated after indexing.
type Document struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	Tokens    []string  `json:"-"`
	Meta      DocMeta   `json:"metadata"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Hit is an ephemeral retrieval result, deduplicated by DocID.
type Hit struct {
	DocID   string
	Kind    Kind
	Title   string
	URL     string
	Snippet string
	Score   float64
	Meta    DocMeta
}
