package store

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/stevemurr/localstate/fsys"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"   - one JSON document at dataDir/prefs.json (default)
//	"sqlite" - SQLite database at dataDir/prefs.db
//	"memory" - In-memory (ephemeral, for testing)
func New(backend, dataDir string, log *zap.Logger) (Store, error) {
	switch backend {
	case "json", "":
		return NewJsonFileStore(fsys.OS{}, filepath.Join(dataDir, "prefs.json"), log)
	case "sqlite":
		return NewSqliteStore(filepath.Join(dataDir, "prefs.db"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, memory)", backend)
	}
}
