package hook

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrHookNotFound is returned when a requested hook cannot be found.
var ErrHookNotFound = errors.New("hook not found")

// Manager discovers hooks in a directory.
type Manager struct {
	dir    string
	hooks  map[string]*Hook
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewManager creates a Manager for dir. A nil logger discards output.
func NewManager(dir string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dir:    dir,
		hooks:  make(map[string]*Hook),
		logger: logger,
	}
}

// Discover scans the hook directory. Each subdirectory holding a hook.json
// manifest is a hook; unreadable manifests are logged and skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = make(map[string]*Hook)
	if m.dir == "" {
		return nil
	}

	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(m.dir, entry.Name())
		manifestPath := filepath.Join(hookPath, ManifestFile)

		data, err := os.ReadFile(manifestPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			m.logger.Warn("skipping hook", zap.String("path", hookPath), zap.Error(err))
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			m.logger.Warn("skipping hook with invalid manifest", zap.String("path", manifestPath), zap.Error(err))
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			m.logger.Warn("skipping hook without name or executable", zap.String("path", manifestPath))
			continue
		}

		m.hooks[manifest.Name] = &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		}
	}

	m.logger.Info("hooks discovered", zap.String("dir", m.dir), zap.Int("count", len(m.hooks)))
	return nil
}

// Get returns a hook by name.
func (m *Manager) Get(name string) (*Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return h, nil
}

// List returns the discovered hooks ordered by name.
func (m *Manager) List() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]*Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool {
		return hooks[i].Manifest.Name < hooks[j].Manifest.Name
	})
	return hooks
}

// Dir returns the hook directory path.
func (m *Manager) Dir() string {
	return m.dir
}
