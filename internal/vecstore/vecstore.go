// Package vecstore persists embedded passages in SQLite and serves
// similarity search from an in-memory proximity graph rebuilt at open.
package vecstore

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Passage is one embedded chunk of a source file.
type Passage struct {
	SourcePath string
	ChunkIndex int
	Text       string
	Vector     []float32
}

// SearchResult is one ranked hit, Score being cosine similarity.
type SearchResult struct {
	SourcePath string
	ChunkIndex int
	ChunkText  string
	Score      float32
}

// Index is the passage store. Reads and writes may come from different
// goroutines; a single RWMutex covers both the database writes and the
// graph.
type Index struct {
	mu sync.RWMutex
	db *sql.DB

	modelID string
	dims    int
	g       *graph

	passages map[int]passageInfo // graph id -> identity
	byKey    map[passageKey]int  // (path, chunk) -> graph id
	bySource map[string][]int    // path -> graph ids
}

type passageKey struct {
	path  string
	chunk int
}

type passageInfo struct {
	path  string
	chunk int
	text  string
}

const vecSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS passages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_path TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	chunk_text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	UNIQUE(source_path, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source_path);
`

// Open opens (or creates) the index database and loads every stored
// passage into the graph, in insertion order.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening vector database: %w", err)
	}
	if _, err := db.Exec(vecSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing vector schema: %w", err)
	}

	idx := &Index{
		db:       db,
		passages: make(map[int]passageInfo),
		byKey:    make(map[passageKey]int),
		bySource: make(map[string][]int),
	}

	if err := idx.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	if idx.dims > 0 {
		idx.g = newGraph(idx.dims)
		if err := idx.load(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return idx, nil
}

// EnsureModel binds the index to one embedding model. The first call
// on a fresh database records the model; later calls verify it, so
// vectors from different models never mix in one index.
func (i *Index) EnsureModel(modelID string, dims int) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.modelID == "" {
		if dims <= 0 {
			return fmt.Errorf("invalid embedding dimensions %d", dims)
		}
		tx, err := i.db.Begin()
		if err != nil {
			return fmt.Errorf("recording embedding model: %w", err)
		}
		for k, v := range map[string]string{
			"model_id":   modelID,
			"dimensions": fmt.Sprintf("%d", dims),
		} {
			if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
				tx.Rollback()
				return fmt.Errorf("recording embedding model: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("recording embedding model: %w", err)
		}
		i.modelID = modelID
		i.dims = dims
		i.g = newGraph(dims)
		return nil
	}

	if i.modelID != modelID {
		return fmt.Errorf("index was built with embedding model %s, current model is %s; re-index with a fresh data directory to switch models", i.modelID, modelID)
	}
	if i.dims != dims {
		return fmt.Errorf("index stores %d-dimensional vectors, current model produces %d", i.dims, dims)
	}
	return nil
}

// ModelID reports the embedding model the index is bound to, empty for
// a fresh index.
func (i *Index) ModelID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.modelID
}

// Add stores one passage. An existing passage with the same source
// path and chunk index is overwritten. The overwrite is a delete plus
// a fresh insert, not an update in place, so the passage moves to the
// end of the insertion order both in memory and after a reload.
func (i *Index) Add(path string, chunkIndex int, text string, vec []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.checkVector(vec); err != nil {
		return err
	}

	tx, err := i.db.Begin()
	if err != nil {
		return fmt.Errorf("storing passage %s[%d]: %w", path, chunkIndex, err)
	}
	if _, err := tx.Exec(`
		DELETE FROM passages WHERE source_path = ? AND chunk_index = ?
	`, path, chunkIndex); err != nil {
		tx.Rollback()
		return fmt.Errorf("storing passage %s[%d]: %w", path, chunkIndex, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO passages (source_path, chunk_index, chunk_text, embedding)
		VALUES (?, ?, ?, ?)
	`, path, chunkIndex, text, encodeVector(vec)); err != nil {
		tx.Rollback()
		return fmt.Errorf("storing passage %s[%d]: %w", path, chunkIndex, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storing passage %s[%d]: %w", path, chunkIndex, err)
	}

	i.addToGraph(Passage{SourcePath: path, ChunkIndex: chunkIndex, Text: text, Vector: vec})
	return nil
}

// ReplaceSource swaps every passage of one source file for a new set,
// as a single unit: the database change is one transaction and the
// graph is only touched after it commits. passages may be empty, which
// just clears the source.
func (i *Index) ReplaceSource(path string, passages []Passage) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, p := range passages {
		if err := i.checkVector(p.Vector); err != nil {
			return err
		}
	}

	tx, err := i.db.Begin()
	if err != nil {
		return fmt.Errorf("replacing passages for %s: %w", path, err)
	}
	if _, err := tx.Exec(`DELETE FROM passages WHERE source_path = ?`, path); err != nil {
		tx.Rollback()
		return fmt.Errorf("replacing passages for %s: %w", path, err)
	}
	for _, p := range passages {
		_, err := tx.Exec(`
			INSERT INTO passages (source_path, chunk_index, chunk_text, embedding)
			VALUES (?, ?, ?, ?)
		`, path, p.ChunkIndex, p.Text, encodeVector(p.Vector))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("replacing passages for %s: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replacing passages for %s: %w", path, err)
	}

	i.removeSourceFromGraph(path)
	for _, p := range passages {
		p.SourcePath = path
		i.addToGraph(p)
	}
	return nil
}

// DeleteBySource removes every passage of one source file. Deleting an
// unknown source is a no-op.
func (i *Index) DeleteBySource(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, err := i.db.Exec(`DELETE FROM passages WHERE source_path = ?`, path); err != nil {
		return fmt.Errorf("deleting passages for %s: %w", path, err)
	}
	i.removeSourceFromGraph(path)
	return nil
}

// Search returns up to k passages ranked by cosine similarity, best
// first. An empty index returns no results.
func (i *Index) Search(vec []float32, k int) ([]SearchResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.g == nil || i.g.len() == 0 {
		return nil, nil
	}
	if err := i.checkVector(vec); err != nil {
		return nil, err
	}

	hits := i.g.search(normalize(vec), k)
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		info := i.passages[h.id]
		results = append(results, SearchResult{
			SourcePath: info.path,
			ChunkIndex: info.chunk,
			ChunkText:  info.text,
			Score:      h.sim,
		})
	}
	return results, nil
}

// Count reports the number of stored passages.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.passages)
}

// Sources reports how many distinct source files have passages.
func (i *Index) Sources() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.bySource)
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Close()
}

func (i *Index) checkVector(vec []float32) error {
	if i.dims == 0 {
		return fmt.Errorf("index has no embedding model bound")
	}
	if len(vec) != i.dims {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vec), i.dims)
	}
	return nil
}

func (i *Index) addToGraph(p Passage) {
	key := passageKey{path: p.SourcePath, chunk: p.ChunkIndex}
	if old, ok := i.byKey[key]; ok {
		i.g.remove(old)
		delete(i.passages, old)
		i.bySource[p.SourcePath] = removeID(i.bySource[p.SourcePath], old)
	}

	id := i.g.insert(normalize(p.Vector))
	i.passages[id] = passageInfo{path: p.SourcePath, chunk: p.ChunkIndex, text: p.Text}
	i.byKey[key] = id
	i.bySource[p.SourcePath] = append(i.bySource[p.SourcePath], id)
}

func (i *Index) removeSourceFromGraph(path string) {
	for _, id := range i.bySource[path] {
		info := i.passages[id]
		i.g.remove(id)
		delete(i.passages, id)
		delete(i.byKey, passageKey{path: info.path, chunk: info.chunk})
	}
	delete(i.bySource, path)
}

func (i *Index) loadMeta() error {
	rows, err := i.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return fmt.Errorf("reading index metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("reading index metadata: %w", err)
		}
		switch k {
		case "model_id":
			i.modelID = v
		case "dimensions":
			if _, err := fmt.Sscanf(v, "%d", &i.dims); err != nil {
				return fmt.Errorf("corrupt dimensions metadata %q: %w", v, err)
			}
		}
	}
	return rows.Err()
}

func (i *Index) load() error {
	rows, err := i.db.Query(`
		SELECT source_path, chunk_index, chunk_text, embedding
		FROM passages ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("loading passages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.SourcePath, &p.ChunkIndex, &p.Text, &blob); err != nil {
			return fmt.Errorf("loading passages: %w", err)
		}
		p.Vector, err = decodeVector(blob, i.dims)
		if err != nil {
			return fmt.Errorf("passage %s[%d]: %w", p.SourcePath, p.ChunkIndex, err)
		}
		i.addToGraph(p)
	}
	return rows.Err()
}

// encodeVector packs float32 components as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != dims*4 {
		return nil, fmt.Errorf("embedding blob has %d bytes, expected %d", len(blob), dims*4)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
