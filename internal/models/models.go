package models

import (
	"os"
	"path/filepath"
)

// Manager resolves local model files for the external inference services.
// This core only reads: downloading, verifying and deleting models belongs
// to the external model manager.
type Manager struct {
	dir string
}

// NewManager creates a manager over dir. An empty dir defaults to the user
// cache directory.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(cache, "voxpipe", "models")
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) Dir() string { return m.dir }

// List returns the IDs of the non-empty model files present in the
// directory. A missing directory lists as empty.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

// LocalPath returns the on-disk path for a model ID and whether a non-empty
// file is present there.
func (m *Manager) LocalPath(modelID string) (string, bool) {
	if modelID == "" {
		return "", false
	}
	path := filepath.Join(m.dir, filepath.Base(modelID))
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return path, false
	}
	return path, true
}
