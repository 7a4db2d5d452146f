package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/nitesh/readme_service/pkg/models"
)

const jsonTable = "_default"

// JSONFileStore keeps intake records in a single JSON document file laid out as
// {"_default": {"<doc_id>": {...record...}}}. Every operation re-reads the file and
// writes it back through a temp file + rename while holding the store mutex.
type JSONFileStore struct {
	mu   sync.Mutex
	path string
}

var _ IntakeStore = (*JSONFileStore)(nil)

// OpenJSONFile opens (creating if needed) the document file at path.
func OpenJSONFile(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonfile store: empty path")
	}
	s := &JSONFileStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(map[int64]models.IntakeRecord{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("jsonfile store: stat %s: %w", path, err)
	}
	return s, nil
}

func (s *JSONFileStore) Close() error { return nil }

func (s *JSONFileStore) Find(ctx context.Context, articleID int64) (*models.IntakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	if err != nil {
		return nil, err
	}
	id, ok := lookup(docs, articleID)
	if !ok {
		return nil, ErrRecordNotFound
	}
	rec := docs[id]
	return &rec, nil
}

func (s *JSONFileStore) FindIndex(ctx context.Context, articleID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	if err != nil {
		return 0, err
	}
	id, ok := lookup(docs, articleID)
	if !ok {
		return 0, ErrRecordNotFound
	}
	return id, nil
}

func (s *JSONFileStore) Insert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	if err != nil {
		return 0, err
	}
	if _, ok := lookup(docs, rec.ArticleID); ok {
		return 0, fmt.Errorf("article %d: %w", rec.ArticleID, ErrDuplicateKey)
	}
	id := nextID(docs)
	docs[id] = rec
	if err := s.write(docs); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *JSONFileStore) Update(ctx context.Context, handle int64, rec models.IntakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := docs[handle]; !ok {
		return fmt.Errorf("doc %d: %w", handle, ErrRecordNotFound)
	}
	if other, ok := lookup(docs, rec.ArticleID); ok && other != handle {
		return fmt.Errorf("article %d: %w", rec.ArticleID, ErrDuplicateKey)
	}
	docs[handle] = rec
	return s.write(docs)
}

func (s *JSONFileStore) Upsert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	if err != nil {
		return 0, err
	}
	id, ok := lookup(docs, rec.ArticleID)
	if !ok {
		id = nextID(docs)
	}
	docs[id] = rec
	if err := s.write(docs); err != nil {
		return 0, err
	}
	return id, nil
}

// lookup returns the lowest doc id holding articleID.
func lookup(docs map[int64]models.IntakeRecord, articleID int64) (int64, bool) {
	ids := make([]int64, 0, len(docs))
	for id, rec := range docs {
		if rec.ArticleID == articleID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, false
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0], true
}

func nextID(docs map[int64]models.IntakeRecord) int64 {
	var last int64
	for id := range docs {
		if id > last {
			last = id
		}
	}
	return last + 1
}

func (s *JSONFileStore) read() (map[int64]models.IntakeRecord, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("jsonfile store: read %s: %w", s.path, err)
	}
	docs := map[int64]models.IntakeRecord{}
	if len(raw) == 0 {
		return docs, nil
	}

	var tables map[string]map[string]models.IntakeRecord
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("jsonfile store: parse %s: %w", s.path, err)
	}
	for key, rec := range tables[jsonTable] {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("jsonfile store: bad doc id %q: %w", key, err)
		}
		docs[id] = rec
	}
	return docs, nil
}

func (s *JSONFileStore) write(docs map[int64]models.IntakeRecord) error {
	table := make(map[string]models.IntakeRecord, len(docs))
	for id, rec := range docs {
		table[strconv.FormatInt(id, 10)] = rec
	}
	data, err := json.MarshalIndent(map[string]map[string]models.IntakeRecord{jsonTable: table}, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile store: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("jsonfile store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("jsonfile store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("jsonfile store: rename: %w", err)
	}
	return nil
}
