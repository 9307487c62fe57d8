package corpus

import "sync"

// Repo keeps the current index in memory and mirrors it to disk, so a
// restart serves searches without a rebuild.
type Repo struct {
	path string

	mu sync.RWMutex
	ix *Index
}

// NewRepo creates an index repository backed by the given file path.
func NewRepo(path string) *Repo {
	return &Repo{path: path}
}

// Current returns the in-memory index, loading it from disk on first use.
// Returns domain.ErrIndexNotBuilt when no usable index exists anywhere.
func (r *Repo) Current() (*Index, error) {
	r.mu.RLock()
	ix := r.ix
	r.mu.RUnlock()
	if ix != nil {
		return ix, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ix != nil {
		return r.ix, nil
	}
	loaded, err := LoadFile(r.path)
	if err != nil {
		return nil, err
	}
	r.ix = loaded
	return r.ix, nil
}

// Replace swaps in a freshly built index and persists it.
func (r *Repo) Replace(ix *Index) error {
	if err := ix.SaveFile(r.path); err != nil {
		return err
	}
	r.mu.Lock()
	r.ix = ix
	r.mu.Unlock()
	return nil
}
