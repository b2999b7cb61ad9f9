package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ambonmud/internal/apperror"
)

// FileBackend is the file durable backend: one JSON file per record
// under dir, written atomically via a temp-file-then-os.Rename, with a
// monotonic id counter that is not stored separately: on open it
// resumes past the highest numeric record id on disk. The data directory is
// created on init; the one-file-per-record layout keeps each write
// independently atomic without an embedded SQL engine.
type FileBackend struct {
	dir string

	mu     sync.Mutex
	byName map[string]string // lowercase name -> id
	nextID int64
}

// NewFileBackend opens (creating if absent) dir as a file-per-record
// store and rebuilds its name index by scanning existing records.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperror.Wrap(apperror.CategoryPersistence, "file_backend_mkdir", err)
	}
	fb := &FileBackend{dir: dir, byName: make(map[string]string)}
	if err := fb.rebuildIndex(); err != nil {
		return nil, err
	}
	return fb, nil
}

func (fb *FileBackend) rebuildIndex() error {
	entries, err := os.ReadDir(fb.dir)
	if err != nil {
		return apperror.Wrap(apperror.CategoryPersistence, "file_backend_scan", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		rec, err := fb.readFile(id)
		if err != nil {
			continue // skip unreadable/partial files rather than fail startup
		}
		fb.byName[strings.ToLower(rec.Name)] = rec.ID
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n >= fb.nextID {
			fb.nextID = n + 1
		}
	}
	if fb.nextID == 0 {
		fb.nextID = 1
	}
	return nil
}

func (fb *FileBackend) path(id string) string {
	return filepath.Join(fb.dir, id+".json")
}

func (fb *FileBackend) readFile(id string) (*PlayerRecord, error) {
	data, err := os.ReadFile(fb.path(id))
	if err != nil {
		return nil, err
	}
	var rec PlayerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// writeFile writes rec atomically: serialize to a temp file in the
// same directory, then os.Rename over the destination, so a crash
// mid-write never leaves a truncated record.
func (fb *FileBackend) writeFile(rec *PlayerRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.CategoryPersistence, "file_backend_marshal", err)
	}
	tmp, err := os.CreateTemp(fb.dir, rec.ID+".*.tmp")
	if err != nil {
		return apperror.Wrap(apperror.CategoryPersistence, "file_backend_tempfile", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperror.Wrap(apperror.CategoryPersistence, "file_backend_write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperror.Wrap(apperror.CategoryPersistence, "file_backend_close", err)
	}
	if err := os.Rename(tmpPath, fb.path(rec.ID)); err != nil {
		os.Remove(tmpPath)
		return apperror.Wrap(apperror.CategoryPersistence, "file_backend_rename", err)
	}
	return nil
}

// FindByName implements Repository.
func (fb *FileBackend) FindByName(name string) (*PlayerRecord, bool, error) {
	fb.mu.Lock()
	id, ok := fb.byName[strings.ToLower(name)]
	fb.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	return fb.FindByID(id)
}

// FindByID implements Repository.
func (fb *FileBackend) FindByID(id string) (*PlayerRecord, bool, error) {
	rec, err := fb.readFile(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, apperror.Wrap(apperror.CategoryPersistence, "file_backend_read", err)
	}
	return rec, true, nil
}

// Create implements Repository: allocates a new id atomically (under
// the backend's mutex) and rejects a case-insensitively duplicate
// name.
func (fb *FileBackend) Create(rec *PlayerRecord) (*PlayerRecord, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	key := strings.ToLower(rec.Name)
	if _, exists := fb.byName[key]; exists {
		return nil, ErrNameTaken
	}

	id := strconv.FormatInt(fb.nextID, 10)
	fb.nextID++

	clone := *rec
	clone.ID = id
	clone.CreatedAt = time.Now()
	clone.LastSeenAt = clone.CreatedAt

	if err := fb.writeFile(&clone); err != nil {
		return nil, err
	}
	fb.byName[key] = id
	return &clone, nil
}

// Save implements Repository: full-record upsert-on-id.
func (fb *FileBackend) Save(rec *PlayerRecord) error {
	if rec.ID == "" {
		return apperror.New(apperror.CategoryPersistence, "file_backend_save_missing_id")
	}
	fb.mu.Lock()
	fb.byName[strings.ToLower(rec.Name)] = rec.ID
	fb.mu.Unlock()
	return fb.writeFile(rec)
}

var _ Repository = (*FileBackend)(nil)
