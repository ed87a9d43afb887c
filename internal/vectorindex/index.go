// Package vectorindex implements the flat inner-product index used for
// cross-run duplicate detection. Vectors are normalized by the embedding
// provider, so inner product is cosine similarity.
package vectorindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sift/internal/embedding"
)

// DefaultDuplicateThreshold is the similarity at which an incoming item is
// considered a near-duplicate of an indexed one.
const DefaultDuplicateThreshold = 0.85

const (
	vectorsFile = "vectors.bin"
	idsFile     = "vector_ids.json"

	indexMagic = "SVI1"
)

// Embedder is the vector source the index depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Match is a single search hit.
type Match struct {
	ID    string
	Score float32
}

// Index is a flat exhaustive inner-product index. Exhaustive search is fine
// at this scale: the index holds tens of thousands of vectors, not millions.
// Safe for concurrent use.
type Index struct {
	embedder Embedder
	dir      string

	mu      sync.RWMutex
	vectors [][]float32
	ids     []string
	idSet   map[string]struct{}
}

// Open loads the index files from dir, or starts empty when they are
// missing, unreadable, or were built with a different embedding dimension.
// It never fails: a bad index is rebuilt as items are ingested.
func Open(dir string, emb Embedder) *Index {
	idx := &Index{
		embedder: emb,
		dir:      dir,
		idSet:    make(map[string]struct{}),
	}

	if err := idx.load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("creating new vector index", "dir", dir)
		} else {
			slog.Warn("rebuilding vector index", "dir", dir, "error", err)
		}
		idx.vectors = nil
		idx.ids = nil
		idx.idSet = make(map[string]struct{})
		return idx
	}

	slog.Info("loaded vector index", "dir", dir, "size", len(idx.ids))
	return idx
}

func (i *Index) load() error {
	raw, err := os.ReadFile(filepath.Join(i.dir, vectorsFile))
	if err != nil {
		return err
	}

	header := len(indexMagic) + 8
	if len(raw) < header || string(raw[:len(indexMagic)]) != indexMagic {
		return errors.New("bad index header")
	}
	dim := int(binary.LittleEndian.Uint32(raw[len(indexMagic):]))
	count := int(binary.LittleEndian.Uint32(raw[len(indexMagic)+4:]))

	if dim != i.embedder.Dimension() {
		return fmt.Errorf("dimension changed: index has %d, embedder wants %d", dim, i.embedder.Dimension())
	}
	if want := header + dim*count*4; len(raw) != want {
		return fmt.Errorf("truncated index: %d bytes, want %d", len(raw), want)
	}

	vectors := make([][]float32, count)
	off := header
	for n := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}
		vectors[n] = vec
	}

	idsRaw, err := os.ReadFile(filepath.Join(i.dir, idsFile))
	if err != nil {
		return fmt.Errorf("reading id list: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(idsRaw, &ids); err != nil {
		return fmt.Errorf("parsing id list: %w", err)
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("index out of sync: %d ids for %d vectors", len(ids), len(vectors))
	}

	i.vectors = vectors
	i.ids = ids
	i.idSet = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		i.idSet[id] = struct{}{}
	}
	return nil
}

// Save writes both index files. The loader treats a torn write as
// corruption and rebuilds, so Save does not need to be atomic.
func (i *Index) Save() error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	dim := i.embedder.Dimension()
	buf := make([]byte, 0, len(indexMagic)+8+len(i.vectors)*dim*4)
	buf = append(buf, indexMagic...)
	buf = appendUint32(buf, uint32(dim))
	buf = appendUint32(buf, uint32(len(i.vectors)))
	for _, vec := range i.vectors {
		for _, x := range vec {
			buf = appendUint32(buf, math.Float32bits(x))
		}
	}
	if err := os.WriteFile(filepath.Join(i.dir, vectorsFile), buf, 0o644); err != nil {
		return fmt.Errorf("writing vectors: %w", err)
	}

	idsRaw, err := json.Marshal(i.ids)
	if err != nil {
		return fmt.Errorf("encoding id list: %w", err)
	}
	if err := os.WriteFile(filepath.Join(i.dir, idsFile), idsRaw, 0o644); err != nil {
		return fmt.Errorf("writing id list: %w", err)
	}
	return nil
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ids)
}

// HasID reports whether id is already indexed.
func (i *Index) HasID(id string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.idSet[id]
	return ok
}

// Add embeds text and indexes it under id.
func (i *Index) Add(ctx context.Context, id, text string) error {
	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding for index: %w", err)
	}
	return i.AddVector(id, vec)
}

// AddVector indexes a precomputed vector under id. It does no dedup of its
// own: callers check HasID first, or accept a second row for the same id.
func (i *Index) AddVector(id string, vec []float32) error {
	if len(vec) != i.embedder.Dimension() {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vec), i.embedder.Dimension())
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.vectors = append(i.vectors, vec)
	i.ids = append(i.ids, id)
	i.idSet[id] = struct{}{}
	return nil
}

// IsDuplicate reports whether text is semantically close to an already
// indexed item. An empty index never matches and skips the embedding call.
func (i *Index) IsDuplicate(ctx context.Context, text string, threshold float32) (bool, error) {
	if i.Len() == 0 {
		return false, nil
	}
	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embedding for duplicate check: %w", err)
	}
	return i.IsDuplicateVector(vec, threshold), nil
}

// IsDuplicateVector reports whether vec's best match meets threshold.
func (i *Index) IsDuplicateVector(vec []float32, threshold float32) bool {
	matches := i.SearchVector(vec, 1)
	return len(matches) > 0 && matches[0].Score >= threshold
}

// Search embeds text and returns its k nearest indexed items.
func (i *Index) Search(ctx context.Context, text string, k int) ([]Match, error) {
	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding for search: %w", err)
	}
	return i.SearchVector(vec, k), nil
}

// SearchVector returns up to k matches sorted by descending similarity.
func (i *Index) SearchVector(vec []float32, k int) []Match {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if k > len(i.vectors) {
		k = len(i.vectors)
	}
	if k <= 0 {
		return nil
	}

	matches := make([]Match, len(i.vectors))
	for n, v := range i.vectors {
		matches[n] = Match{ID: i.ids[n], Score: embedding.Dot(vec, v)}
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })
	return matches[:k]
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
