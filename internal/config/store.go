package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// --- Path helpers ---

// ConfigDirPath returns ~/.tuberdash
func ConfigDirPath() string {
	return filepath.Join(os.Getenv("HOME"), ConfigDir)
}

// ConfigFilePath returns ~/.tuberdash/config.yaml
func ConfigFilePath() string {
	return filepath.Join(ConfigDirPath(), ConfigFile)
}

// LogPath returns ~/.tuberdash/tuberdash.log
func LogPath() string {
	return filepath.Join(ConfigDirPath(), LogFile)
}

// --- Store ---

// Store manages reading and writing config.yaml.
type Store struct {
	mu      sync.Mutex
	path    string
	file    *File
	modTime time.Time // last known modification time of config file
}

var (
	defaultStore *Store
	defaultMu    sync.Mutex
)

// NewStore returns a store backed by path. Nothing is read until first use.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore returns the global Store singleton, loading it on first call.
func DefaultStore() *Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore == nil {
		defaultStore = NewStore(ConfigFilePath())
		defaultStore.Load()
	}
	return defaultStore
}

// ResetDefaultStore clears the singleton so the next DefaultStore() call
// re-initializes. Intended for tests.
func ResetDefaultStore() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStore = nil
}

// --- Cluster operations ---

// Cluster returns a copy of the named cluster, or nil.
func (s *Store) Cluster(name string) *Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	if s.file == nil {
		return nil
	}
	c := s.file.Clusters[name]
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// SetCluster creates or updates a cluster and saves. The first cluster
// added becomes current.
func (s *Store) SetCluster(name string, c *Cluster) error {
	if name == "" {
		return fmt.Errorf("cluster name cannot be empty")
	}
	if c == nil || c.URL == "" {
		return fmt.Errorf("cluster %q needs a url", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureFile()
	s.file.Clusters[name] = c
	if s.file.Current == "" {
		s.file.Current = name
	}
	return s.saveLocked()
}

// DeleteCluster removes a cluster. Removing the current cluster clears
// the selection.
func (s *Store) DeleteCluster(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureFile()
	if _, ok := s.file.Clusters[name]; !ok {
		return fmt.Errorf("cluster %q not found", name)
	}
	delete(s.file.Clusters, name)
	if s.file.Current == name {
		s.file.Current = ""
	}
	return s.saveLocked()
}

// UseCluster makes name the current cluster.
func (s *Store) UseCluster(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	s.ensureFile()
	if _, ok := s.file.Clusters[name]; !ok {
		return fmt.Errorf("cluster %q not found", name)
	}
	s.file.Current = name
	return s.saveLocked()
}

// CurrentName returns the current cluster name, possibly empty.
func (s *Store) CurrentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	if s.file == nil {
		return ""
	}
	return s.file.Current
}

// ClusterNames returns sorted cluster names.
func (s *Store) ClusterNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	if s.file == nil {
		return nil
	}
	names := make([]string, 0, len(s.file.Clusters))
	for n := range s.file.Clusters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// --- I/O ---

// reloadIfModified reloads when the file changed on disk. Must be called with s.mu held.
func (s *Store) reloadIfModified() {
	if info, err := os.Stat(s.path); err == nil {
		if info.ModTime().After(s.modTime) {
			s.loadLocked()
		}
	}
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", s.path, err)
		}
		s.file = &File{Clusters: make(map[string]*Cluster)}
		s.modTime = time.Time{}
		return nil
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if f.Clusters == nil {
		f.Clusters = make(map[string]*Cluster)
	}
	s.file = &f
	if info, statErr := os.Stat(s.path); statErr == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// Load reads config.yaml. A missing file yields an empty config.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) ensureFile() {
	if s.file == nil {
		s.file = &File{Clusters: make(map[string]*Cluster)}
	}
}

// saveLocked writes the config atomically (temp + rename) with 0600 permissions.
func (s *Store) saveLocked() error {
	s.ensureFile()
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(s.file)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tuberdash-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save config: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}
