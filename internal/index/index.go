// Package index implements a persisted TF-IDF document index with cosine
// similarity search.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Sentinel errors. Use errors.Is() to check for these in calling code.
var (
	// ErrEmptyText indicates an ingestion call with no text at all.
	ErrEmptyText = errors.New("empty text, nothing to index")

	// ErrNoTokens indicates the text produced zero terms after cleaning.
	ErrNoTokens = errors.New("no tokens found after cleaning")

	// ErrPersist indicates the index state could not be written to disk.
	// The triggering operation fails loudly rather than reporting success.
	ErrPersist = errors.New("index persistence failed")
)

// A term is a maximal run of length >= 2 of Latin letters (accents
// included), digits or underscores, case-folded to lowercase.
var tokenRE = regexp.MustCompile(`[A-Za-zÀ-ÖØ-öø-ÿ0-9_]{2,}`)

// reindexReaders bounds concurrent file reads during Reindex.
const reindexReaders = 4

// Document is one indexed text with its term statistics.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	TermFreq map[string]int `json:"term_freq"`
	Length   int            `json:"length"`
}

// Result is one search hit.
type Result struct {
	DocID    string         `json:"doc_id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Index holds the inverted TF-IDF state. Writers hold the exclusive lock
// across mutation and persistence; Search takes the read lock only, so
// queries see a consistent snapshot without blocking each other.
type Index struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger

	docCount int
	df       map[string]int
	docs     map[string]*Document
	order    []string // insertion order, for deterministic tie-breaking
}

// persistedState is the on-disk JSON shape.
type persistedState struct {
	DocCount int                  `json:"doc_count"`
	DF       map[string]int       `json:"df"`
	Docs     map[string]*Document `json:"docs"`
	Order    []string             `json:"order"`
}

// New creates an index backed by the given JSON file, loading prior state
// if present. A corrupted file degrades to an empty index with a warning,
// never an error.
func New(path string, logger *slog.Logger) *Index {
	ix := &Index{
		path:   path,
		logger: logger,
		df:     make(map[string]int),
		docs:   make(map[string]*Document),
	}
	ix.load()
	return ix
}

func (ix *Index) load() {
	raw, err := os.ReadFile(ix.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			ix.logger.Warn("index file unreadable, starting empty", "path", ix.path, "error", err)
		}
		return
	}
	var state persistedState
	if err := json.Unmarshal(raw, &state); err != nil {
		ix.logger.Warn("index file corrupted, starting empty", "path", ix.path, "error", err)
		return
	}
	if state.DF == nil {
		state.DF = make(map[string]int)
	}
	if state.Docs == nil {
		state.Docs = make(map[string]*Document)
	}
	ix.df = state.DF
	ix.docs = state.Docs
	ix.docCount = len(state.Docs)
	ix.order = restoreOrder(state.Order, state.Docs)
}

// restoreOrder rebuilds the insertion order, tolerating files written
// without one or drifted from the document map.
func restoreOrder(order []string, docs map[string]*Document) []string {
	seen := make(map[string]bool, len(docs))
	out := make([]string, 0, len(docs))
	for _, id := range order {
		if _, ok := docs[id]; ok && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	missing := make([]string, 0)
	for id := range docs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return append(out, missing...)
}

// saveLocked persists the full state. Caller must hold the write lock.
func (ix *Index) saveLocked() error {
	state := persistedState{
		DocCount: ix.docCount,
		DF:       ix.df,
		Docs:     ix.docs,
		Order:    ix.order,
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.WriteFile(ix.path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func tokenize(text string) []string {
	return tokenRE.FindAllString(strings.ToLower(text), -1)
}

func termFrequency(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}

// Ingest adds or replaces a document and returns its id. When id is empty
// a sequential doc_<n> id is assigned. Re-ingesting an existing id fully
// retracts the prior postings first (replace, not merge). State is
// persisted synchronously before returning.
func (ix *Index) Ingest(text, docID string, metadata map[string]any) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return "", ErrNoTokens
	}
	tf := termFrequency(tokens)
	if metadata == nil {
		metadata = map[string]any{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if docID == "" {
		docID = fmt.Sprintf("doc_%d", ix.docCount+1)
	}
	if _, exists := ix.docs[docID]; exists {
		ix.removeLocked(docID)
	}
	ix.updateDFLocked(tf, +1)
	ix.docs[docID] = &Document{
		Text:     text,
		Metadata: metadata,
		TermFreq: tf,
		Length:   len(tokens),
	}
	ix.order = append(ix.order, docID)
	ix.docCount = len(ix.docs)
	if err := ix.saveLocked(); err != nil {
		return "", err
	}
	return docID, nil
}

// IngestFile indexes a file as UTF-8 text. Read failures are not errors:
// they log a warning and return an empty id. The default document id is
// the filename stem; metadata gains a "path" field when not already set.
func (ix *Index) IngestFile(path string, metadata map[string]any) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		ix.logger.Warn("corpus file unreadable, skipped", "path", path, "error", err)
		return "", nil
	}
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta["path"]; !ok {
		meta["path"] = path
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ix.Ingest(string(raw), stem, meta)
}

// Reset clears the index to empty and persists.
func (ix *Index) Reset() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docCount = 0
	ix.df = make(map[string]int)
	ix.docs = make(map[string]*Document)
	ix.order = nil
	return ix.saveLocked()
}

// Reindex clears the index then ingests every file under folder (recursive)
// whose extension is in the allow-list. Full replace, never additive.
// Returns the count of successfully ingested documents. File reads run
// concurrently; index mutation stays serialized behind the write lock.
func (ix *Index) Reindex(folder string, extensions []string) (int, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var paths []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && allowed[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("walk corpus folder: %w", err)
	}

	if err := ix.Reset(); err != nil {
		return 0, err
	}

	var count atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(reindexReaders)
	for _, path := range paths {
		g.Go(func() error {
			id, err := ix.IngestFile(path, map[string]any{"source": "corpus"})
			if err != nil {
				if errors.Is(err, ErrPersist) {
					return err
				}
				ix.logger.Warn("corpus file skipped", "path", path, "error", err)
				return nil
			}
			if id != "" {
				count.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(count.Load()), err
	}
	return int(count.Load()), nil
}

// Count returns the number of indexed documents.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.docCount
}

// Search tokenizes the query like ingestion, weighs both sides with TF-IDF
// and ranks documents by cosine similarity. Zero-score hits are excluded;
// ties keep insertion order; at most max(1, topK) results are returned.
func (ix *Index) Search(query string, topK int) []Result {
	tokens := tokenize(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(tokens) == 0 || ix.docCount == 0 {
		return nil
	}

	queryVec, queryNorm := ix.tfidfLocked(termFrequency(tokens), len(tokens))

	type scored struct {
		id    string
		score float64
	}
	results := make([]scored, 0, len(ix.order))
	for _, docID := range ix.order {
		doc := ix.docs[docID]
		docVec, docNorm := ix.tfidfLocked(doc.TermFreq, doc.Length)
		if score := cosine(queryVec, queryNorm, docVec, docNorm); score > 0 {
			results = append(results, scored{docID, score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	limit := topK
	if limit < 1 {
		limit = 1
	}
	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		doc := ix.docs[r.id]
		out = append(out, Result{
			DocID:    r.id,
			Score:    math.Round(r.score*10000) / 10000,
			Text:     doc.Text,
			Metadata: doc.Metadata,
		})
	}
	return out
}

// tfidfLocked computes the sparse weight vector and its L2 norm for one
// side. The norm of an empty vector is 1, avoiding division by zero.
// Caller must hold at least the read lock.
func (ix *Index) tfidfLocked(tf map[string]int, length int) (map[string]float64, float64) {
	if length < 1 {
		length = 1
	}
	weights := make(map[string]float64, len(tf))
	var normSq float64
	for term, count := range tf {
		idf := math.Log(float64(1+ix.docCount)/float64(1+ix.df[term])) + 1.0
		w := float64(count) / float64(length) * idf
		weights[term] = w
		normSq += w * w
	}
	norm := math.Sqrt(normSq)
	if norm == 0 {
		norm = 1
	}
	return weights, norm
}

func cosine(vecA map[string]float64, normA float64, vecB map[string]float64, normB float64) float64 {
	if len(vecA) == 0 || len(vecB) == 0 {
		return 0
	}
	var dot float64
	for term, w := range vecA {
		if other, ok := vecB[term]; ok {
			dot += w * other
		}
	}
	return dot / (normA * normB)
}

// removeLocked retracts a document's postings. Caller must hold the write
// lock.
func (ix *Index) removeLocked(docID string) {
	doc, ok := ix.docs[docID]
	if !ok {
		return
	}
	delete(ix.docs, docID)
	ix.updateDFLocked(doc.TermFreq, -1)
	for i, id := range ix.order {
		if id == docID {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
	if ix.docCount > 0 {
		ix.docCount--
	}
}

func (ix *Index) updateDFLocked(tf map[string]int, delta int) {
	for term := range tf {
		next := ix.df[term] + delta
		if next <= 0 {
			delete(ix.df, term)
		} else {
			ix.df[term] = next
		}
	}
}
