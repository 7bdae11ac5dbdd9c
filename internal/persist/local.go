package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/adamgoodwin/highlow/internal/fileutil"
)

// LocalStore is the synchronous write-through store the session saves to
// after every mutation. Save must never fail back into gameplay and Load
// must always produce a usable state.
type LocalStore interface {
	Save(state PersistedState)
	Load() PersistedState
}

// FileStore persists the snapshot as a JSON file, written atomically.
// Storage errors are logged and swallowed; the next mutation retries
// naturally.
type FileStore struct {
	path   string
	logger *log.Logger
}

// NewFileStore creates a FileStore at path, creating parent directories as
// needed.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	return &FileStore{path: path, logger: logger.WithPrefix("local-store")}
}

// Save writes the snapshot. Errors are logged, never returned.
func (fs *FileStore) Save(state PersistedState) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		fs.logger.Error("Failed to encode state", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		fs.logger.Warn("Failed to create state directory", "error", err)
		return
	}
	if err := fileutil.WriteFileAtomic(fs.path, data, 0o644); err != nil {
		fs.logger.Warn("Failed to save state", "path", fs.path, "error", err)
	}
}

// Load reads the snapshot, degrading to defaults field-by-field on any
// missing or corrupt data.
func (fs *FileStore) Load() PersistedState {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Warn("Failed to read state, using defaults", "path", fs.path, "error", err)
		}
		return DefaultState()
	}
	return Sanitize(data)
}

// MemoryStore is an in-memory LocalStore for tests and ephemeral sessions.
type MemoryStore struct {
	state PersistedState
	set   bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (ms *MemoryStore) Save(state PersistedState) {
	ms.state = state
	ms.set = true
}

func (ms *MemoryStore) Load() PersistedState {
	if !ms.set {
		return DefaultState()
	}
	return ms.state
}
