// Package docvec is an embedded document store with hybrid retrieval. It
// keeps full documents alongside their embeddings, serves approximate
// nearest-neighbor search over an HNSW graph that is rebuilt lazily, blends
// in a BM25 keyword signal, and snapshots the whole record set to a blob
// store for durability.
//
// All operations are safe for concurrent use. Embedding backend calls never
// run under the store's locks.
package docvec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grapedb/docvec/embedding"
	"github.com/grapedb/docvec/index"
	"github.com/grapedb/docvec/lexical"
	"github.com/grapedb/docvec/lexical/bm25"
	"github.com/grapedb/docvec/persistence"
)

// Store is an embedded vector document store. Create one with New.
type Store struct {
	dimension  int
	opts       options
	vectorizer *embedding.Vectorizer
	ann        *index.ANN
	manager    *persistence.Manager // nil without storage

	mu          sync.RWMutex
	records     map[string]*DocumentRecord
	lex         lexical.Index
	lastUpdated time.Time
}

// New creates a store over the given embedding backend. The store's vector
// dimension is fixed to the backend's for its whole lifetime.
func New(backend embedding.Backend, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	dimension := backend.Dimension()
	if dimension <= 0 {
		return nil, fmt.Errorf("backend reports dimension %d", dimension)
	}

	s := &Store{
		dimension: dimension,
		opts:      opts,
		records:   make(map[string]*DocumentRecord),
		lex:       bm25.New(),
	}

	metered := &meteredBackend{backend: backend, metrics: opts.metricsCollector}

	vopts := append([]func(o *embedding.VectorizerOptions){
		func(o *embedding.VectorizerOptions) {
			o.Observer = cacheObserver{metrics: opts.metricsCollector}
		},
	}, opts.vectorizerOptions...)

	s.vectorizer = embedding.NewVectorizer(metered, vopts...)

	s.ann = index.New(dimension, vectorSource{store: s}, opts.hnswOptions...)
	s.ann.OnRebuild(opts.metricsCollector.RecordRebuild)

	if opts.storage != nil {
		s.manager = persistence.NewManager(opts.storage, func(o *persistence.ManagerOptions) {
			o.Codec = opts.codec
			o.Compression = opts.compression
		})
	}

	return s, nil
}

// meteredBackend records a metric per backend round trip.
type meteredBackend struct {
	backend embedding.Backend
	metrics MetricsCollector
}

func (m *meteredBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	sw := newStopwatch()
	vec, err := m.backend.Embed(ctx, text)
	m.metrics.RecordEmbedding(sw.elapsed(), err)
	return vec, err
}

func (m *meteredBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	sw := newStopwatch()
	vecs, err := m.backend.EmbedBatch(ctx, texts)
	m.metrics.RecordEmbedding(sw.elapsed(), err)
	return vecs, err
}

func (m *meteredBackend) Dimension() int {
	return m.backend.Dimension()
}

// cacheObserver forwards embedding cache events to the metrics collector.
type cacheObserver struct {
	metrics MetricsCollector
}

func (o cacheObserver) CacheHit()  { o.metrics.RecordCacheHit() }
func (o cacheObserver) CacheMiss() { o.metrics.RecordCacheMiss() }

// vectorSource feeds the index rebuilds from the store's vectorized records.
type vectorSource struct {
	store *Store
}

// VectorSnapshot implements index.Snapshotter. Points are ordered by
// document id so rebuilds over the same record set produce the same graph.
func (v vectorSource) VectorSnapshot() []index.VectorPoint {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()

	points := make([]index.VectorPoint, 0, len(v.store.records))
	for id, rec := range v.store.records {
		if !rec.Vectorized() {
			continue
		}
		points = append(points, index.VectorPoint{Vector: rec.Embedding, DocumentID: id})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].DocumentID < points[j].DocumentID
	})

	return points
}

// vectorize embeds a single text. A backend outage returns degraded=true
// and no vector; any other failure propagates.
func (s *Store) vectorize(ctx context.Context, text string) ([]float32, bool, error) {
	vec, err := s.vectorizer.Vectorize(ctx, text)
	if err != nil {
		var ue *embedding.UnavailableError
		if errors.As(err, &ue) {
			return nil, true, nil
		}
		return nil, false, translateError(err)
	}
	return vec, false, nil
}

// Add inserts or replaces a document. An empty ID gets a fresh unique one;
// the stored record's ID is returned. If the embedding backend is
// unavailable the document is stored without a vector and remains findable
// through keyword search until a later write re-embeds it.
func (s *Store) Add(ctx context.Context, doc Document) (string, error) {
	sw := newStopwatch()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	vec, degraded, err := s.vectorize(ctx, doc.Content)
	if err != nil {
		s.opts.metricsCollector.RecordAdd(sw.elapsed(), err)
		s.opts.logger.LogAdd(ctx, doc.ID, false, err)
		return "", err
	}

	now := time.Now().UTC()

	s.mu.Lock()
	rec := &DocumentRecord{
		Document:  doc,
		Embedding: vec,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, ok := s.records[doc.ID]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	s.records[doc.ID] = rec
	s.lastUpdated = now
	_ = s.lex.Add(doc.ID, doc.Title+" "+doc.Content)
	s.mu.Unlock()

	s.ann.MarkStale()

	s.opts.metricsCollector.RecordAdd(sw.elapsed(), nil)
	s.opts.logger.LogAdd(ctx, doc.ID, degraded, nil)

	return doc.ID, nil
}

// AddBatch inserts or replaces many documents in one pass, sharing a single
// batched embedding round. It returns the stored IDs in input order. If the
// embedding backend is unavailable the whole batch is stored degraded.
func (s *Store) AddBatch(ctx context.Context, docs []Document) ([]string, error) {
	sw := newStopwatch()

	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		ids[i] = docs[i].ID
		texts[i] = docs[i].Content
	}

	vecs, err := s.vectorizer.VectorizeBatch(ctx, texts)

	degraded := 0
	if err != nil {
		var ue *embedding.UnavailableError
		if !errors.As(err, &ue) {
			s.opts.metricsCollector.RecordBatchAdd(len(docs), 0, sw.elapsed())
			return nil, translateError(err)
		}
		vecs = make([][]float32, len(docs))
		degraded = len(docs)
	}

	now := time.Now().UTC()

	s.mu.Lock()
	for i := range docs {
		rec := &DocumentRecord{
			Document:  docs[i],
			Embedding: vecs[i],
			CreatedAt: now,
			UpdatedAt: now,
		}
		if prev, ok := s.records[docs[i].ID]; ok {
			rec.CreatedAt = prev.CreatedAt
		}
		s.records[docs[i].ID] = rec
		_ = s.lex.Add(docs[i].ID, docs[i].Title+" "+docs[i].Content)
	}
	s.lastUpdated = now
	s.mu.Unlock()

	s.ann.MarkStale()

	s.opts.metricsCollector.RecordBatchAdd(len(docs), degraded, sw.elapsed())
	s.opts.logger.LogBatchAdd(ctx, len(docs), degraded)

	return ids, nil
}

// Get returns a copy of the stored record for the given document id.
func (s *Store) Get(ctx context.Context, id string) (*DocumentRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}

	out := *rec
	out.Metadata = cloneMetadata(rec.Metadata)
	if rec.Embedding != nil {
		out.Embedding = make([]float32, len(rec.Embedding))
		copy(out.Embedding, rec.Embedding)
	}

	return &out, nil
}

// Remove deletes a document. Removing an unknown id returns ErrNotFound.
func (s *Store) Remove(ctx context.Context, id string) error {
	sw := newStopwatch()

	s.mu.Lock()
	_, ok := s.records[id]
	if ok {
		delete(s.records, id)
		_ = s.lex.Remove(id)
		s.lastUpdated = time.Now().UTC()
	}
	s.mu.Unlock()

	if !ok {
		err := fmt.Errorf("document %q: %w", id, ErrNotFound)
		s.opts.metricsCollector.RecordRemove(sw.elapsed(), err)
		s.opts.logger.LogRemove(ctx, id, err)
		return err
	}

	s.ann.MarkStale()

	s.opts.metricsCollector.RecordRemove(sw.elapsed(), nil)
	s.opts.logger.LogRemove(ctx, id, nil)

	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Save writes the full record set as a new snapshot generation. The previous
// generation stays readable until the new one is durable, so a failed save
// never loses the last good snapshot.
func (s *Store) Save(ctx context.Context) error {
	if s.manager == nil {
		return fmt.Errorf("%w: no storage configured", ErrStorageIO)
	}

	s.mu.RLock()
	snapshot := make([]DocumentRecord, 0, len(s.records))
	for _, rec := range s.records {
		snapshot = append(snapshot, *rec)
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].ID < snapshot[j].ID
	})

	manifest, err := s.manager.Save(ctx, persistence.SaveInfo{
		Dimension:   s.dimension,
		RecordCount: len(snapshot),
	}, snapshot)
	if err != nil {
		err = translateError(err)
		if !errors.Is(err, ErrSerialization) && !errors.Is(err, ErrStorageIO) {
			err = fmt.Errorf("%w: %w", ErrStorageIO, err)
		}
		s.opts.logger.LogSave(ctx, 0, len(snapshot), err)
		return err
	}

	s.opts.logger.LogSave(ctx, manifest.ID, len(snapshot), nil)

	return nil
}

// Load replaces the in-memory record set with the live snapshot. A corrupt
// or incompatible snapshot fails closed: the store keeps its current state.
func (s *Store) Load(ctx context.Context) error {
	if s.manager == nil {
		return fmt.Errorf("%w: no storage configured", ErrStorageIO)
	}

	var snapshot []DocumentRecord

	manifest, err := s.manager.Load(ctx, &snapshot)
	if err != nil {
		err = s.classifyLoadError(err)
		s.opts.logger.LogLoad(ctx, 0, 0, err)
		return err
	}

	if manifest.Dimension != s.dimension {
		err := fmt.Errorf("%w: snapshot dimension %d, store dimension %d",
			ErrSerialization, manifest.Dimension, s.dimension)
		s.opts.logger.LogLoad(ctx, manifest.ID, 0, err)
		return err
	}

	for i := range snapshot {
		if rec := &snapshot[i]; rec.Vectorized() && len(rec.Embedding) != s.dimension {
			err := fmt.Errorf("%w: record %q embedding length %d, store dimension %d",
				ErrSerialization, rec.ID, len(rec.Embedding), s.dimension)
			s.opts.logger.LogLoad(ctx, manifest.ID, 0, err)
			return err
		}
	}

	records := make(map[string]*DocumentRecord, len(snapshot))
	lex := bm25.New()
	for i := range snapshot {
		rec := snapshot[i]
		records[rec.ID] = &rec
		_ = lex.Add(rec.ID, rec.Title+" "+rec.Content)
	}

	s.mu.Lock()
	_ = s.lex.Close()
	s.records = records
	s.lex = lex
	s.lastUpdated = time.Now().UTC()
	s.mu.Unlock()

	s.ann.MarkStale()

	s.opts.logger.LogLoad(ctx, manifest.ID, len(snapshot), nil)

	return nil
}

// classifyLoadError maps manager failures into the store taxonomy.
func (s *Store) classifyLoadError(err error) error {
	if errors.Is(err, persistence.ErrNoSnapshot) {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	translated := translateError(err)
	if errors.Is(translated, ErrSerialization) || errors.Is(translated, ErrStorageIO) {
		return translated
	}

	return fmt.Errorf("%w: %w", ErrStorageIO, err)
}

// Stats returns a point-in-time snapshot of store state. It never fails.
func (s *Store) Stats() DatabaseStats {
	s.mu.RLock()

	var contentBytes int64
	vectors := 0
	for _, rec := range s.records {
		contentBytes += int64(len(rec.Content)) + int64(len(rec.Title))
		if rec.Vectorized() {
			vectors++
		}
	}
	docs := len(s.records)
	updated := s.lastUpdated

	s.mu.RUnlock()

	vectorBytes := int64(vectors) * int64(s.dimension) * 4
	indexBytes := s.ann.SizeBytes()

	const mb = 1024 * 1024

	return DatabaseStats{
		DocumentCount: docs,
		VectorCount:   vectors,
		TotalSizeMB:   float64(contentBytes+vectorBytes) / mb,
		MemoryUsageMB: float64(contentBytes+vectorBytes+indexBytes) / mb,
		IndexSizeMB:   float64(indexBytes) / mb,
		LastUpdated:   updated,
	}
}

// CacheStats returns a snapshot of embedding cache effectiveness.
func (s *Store) CacheStats() embedding.CacheStats {
	return s.vectorizer.CacheStats()
}

// IndexRebuilds returns the number of vector index rebuilds so far.
func (s *Store) IndexRebuilds() uint64 {
	return s.ann.Rebuilds()
}

// Close releases store resources. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lex.Close()
}
