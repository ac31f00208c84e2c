package history

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ddcrelight/internal/fsutil"
	"ddcrelight/internal/timeutil"
)

// Store persists a Document.
type Store interface {
	// Load returns the stored document, or a freshly bootstrapped one if
	// nothing has been stored yet.
	Load() (Document, error)

	// Save replaces the stored document.
	Save(doc Document) error

	// ModTime returns when the stored document last changed, or the zero
	// time if nothing has been stored yet.
	ModTime() (time.Time, error)
}

//go:embed schema.json
var documentSchemaJSON string

var documentSchema = jsonschema.MustCompileString("history.schema.json", documentSchemaJSON)

// Decode parses and validates a serialized document.
// Every failure wraps ErrCorruptStore.
func Decode(data []byte) (Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	if err := documentSchema.Validate(raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	if err := doc.Newest.Validate(); err != nil {
		return Document{}, fmt.Errorf("%w: newest: %v", ErrCorruptStore, err)
	}
	if err := doc.Stable.Validate(); err != nil {
		return Document{}, fmt.Errorf("%w: stable: %v", ErrCorruptStore, err)
	}
	return doc, nil
}

// Encode serializes a document.
func Encode(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

// FileStore keeps the document in a JSON file. Each Load and each Save holds
// an exclusive lock on the file for the duration of that single read or
// write. A Load/Save pair is not atomic: concurrent writers race and the
// last one wins.
type FileStore struct {
	path  string
	clock timeutil.Clock
}

// NewFileStore returns a store backed by the file at path. clock supplies
// last_updated for the bootstrap document; nil means the real clock.
func NewFileStore(path string, clock timeutil.Clock) *FileStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FileStore{path: path, clock: clock}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load() (Document, error) {
	data, err := fsutil.ReadLocked(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewDocument(s.clock.Now()), nil
		}
		return Document{}, fmt.Errorf("read history %s: %w", s.path, err)
	}

	doc, err := Decode(data)
	if err != nil {
		return Document{}, fmt.Errorf("load %s: %w", s.path, err)
	}
	return doc, nil
}

// Save implements Store. The containing directory is created if needed.
func (s *FileStore) Save(doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := fsutil.WriteLocked(s.path, data, fsutil.PermStateFile); err != nil {
		return fmt.Errorf("write history %s: %w", s.path, err)
	}
	return nil
}

// ModTime implements Store.
func (s *FileStore) ModTime() (time.Time, error) {
	mt, err := fsutil.ModTime(s.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat history %s: %w", s.path, err)
	}
	return mt, nil
}

// MemoryStore is a Store held in memory. Every Save advances its
// modification time by one tick of its clock, so readers always observe
// a change.
type MemoryStore struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	doc     *Document
	modTime time.Time
	loads   int
	saves   int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(clock timeutil.Clock) *MemoryStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &MemoryStore{clock: clock}
}

// Load implements Store.
func (m *MemoryStore) Load() (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loads++
	if m.doc == nil {
		return NewDocument(m.clock.Now()), nil
	}
	return m.doc.Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := doc.Clone()
	m.doc = &d
	m.saves++

	now := m.clock.Now()
	if !now.After(m.modTime) {
		now = m.modTime.Add(time.Nanosecond)
	}
	m.modTime = now
	return nil
}

// ModTime implements Store.
func (m *MemoryStore) ModTime() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modTime, nil
}

// Loads returns how many times Load has been called.
func (m *MemoryStore) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Saves returns how many times Save has been called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// compile-time interface checks
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
