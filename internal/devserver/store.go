package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/freshly/tuberdash/internal/model"
)

// ErrNotFound is returned for unknown app names. The message is what tuber
// itself answers with.
var ErrNotFound = errors.New("could not find app")

// AppRecord is an app as persisted by the dev server. Env stands in for the
// app's env secret; PreviousImageTag is what rollback returns to.
type AppRecord struct {
	model.TuberApp
	Env              []*model.Tuple `json:"env,omitempty"`
	PreviousImageTag string         `json:"previousImageTag,omitempty"`
}

// Data is the whole dev server state.
type Data struct {
	Cluster model.ClusterInfo `json:"cluster"`
	Apps    []*AppRecord      `json:"apps"`
}

// Store keeps Data in memory and mirrors it to a JSON file. An empty path
// keeps everything in memory.
type Store struct {
	mu      sync.Mutex
	path    string
	data    *Data
	modTime time.Time
}

// NewStore returns a store backed by path. Call Load to read it.
func NewStore(path string) *Store {
	return &Store{path: path, data: &Data{}}
}

// Path returns the backing file, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Load reads the backing file. A missing file yields empty data.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Seed replaces all data and saves.
func (s *Store) Seed(d *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(cloneData(d))
}

// Empty reports whether the store holds no apps.
func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	return len(s.data.Apps) == 0
}

func (s *Store) Cluster() model.ClusterInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	return s.data.Cluster
}

// Apps returns copies of every record, sorted by name.
func (s *Store) Apps() []*AppRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	out := make([]*AppRecord, 0, len(s.data.Apps))
	for _, a := range s.data.Apps {
		out = append(out, cloneRecord(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// App returns a copy of the named record.
func (s *Store) App(name string) (*AppRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	a := s.findLocked(name)
	if a == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(a), nil
}

// Update runs fn on the named record and saves when fn succeeds. The
// returned record is a copy of the saved state.
func (s *Store) Update(name string, fn func(*AppRecord) error) (*AppRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	i := s.indexLocked(name)
	if i < 0 {
		return nil, ErrNotFound
	}
	work := cloneRecord(s.data.Apps[i])
	if err := fn(work); err != nil {
		return nil, err
	}
	next := cloneData(s.data)
	next.Apps[i] = work
	if err := s.commitLocked(next); err != nil {
		return nil, fmt.Errorf("could not save changes: %w", err)
	}
	return cloneRecord(work), nil
}

// Create adds a record. Names are unique.
func (s *Store) Create(rec *AppRecord) error {
	if rec == nil || rec.Name == "" {
		return fmt.Errorf("app name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	if s.indexLocked(rec.Name) >= 0 {
		return fmt.Errorf("app %q already exists", rec.Name)
	}
	next := cloneData(s.data)
	next.Apps = append(next.Apps, cloneRecord(rec))
	return s.commitLocked(next)
}

// Delete removes the named record.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadIfModified()
	i := s.indexLocked(name)
	if i < 0 {
		return ErrNotFound
	}
	next := cloneData(s.data)
	next.Apps = append(next.Apps[:i], next.Apps[i+1:]...)
	return s.commitLocked(next)
}

// commitLocked makes next the current data once it is on disk. On a failed
// save the previous data stays current.
func (s *Store) commitLocked(next *Data) error {
	prev := s.data
	s.data = next
	if err := s.saveLocked(); err != nil {
		s.data = prev
		return err
	}
	return nil
}

func (s *Store) indexLocked(name string) int {
	for i, a := range s.data.Apps {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) findLocked(name string) *AppRecord {
	for _, a := range s.data.Apps {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// --- I/O ---

// reloadIfModified picks up edits made to the file by hand. Must be called with s.mu held.
func (s *Store) reloadIfModified() {
	if s.path == "" {
		return
	}
	if info, err := os.Stat(s.path); err == nil && info.ModTime().After(s.modTime) {
		s.loadLocked()
	}
}

func (s *Store) loadLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", s.path, err)
		}
		s.data = &Data{}
		s.modTime = time.Time{}
		return nil
	}
	var d Data
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	s.data = &d
	if info, statErr := os.Stat(s.path); statErr == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// saveLocked writes the data file atomically (temp + rename).
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "tuberdash-data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save data: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// --- copies ---

func cloneData(d *Data) *Data {
	if d == nil {
		return &Data{}
	}
	out := &Data{Cluster: d.Cluster, Apps: make([]*AppRecord, 0, len(d.Apps))}
	for _, a := range d.Apps {
		out.Apps = append(out.Apps, cloneRecord(a))
	}
	return out
}

func cloneRecord(a *AppRecord) *AppRecord {
	out := *a
	out.ReviewApps = nil
	out.Vars = cloneTuples(a.Vars)
	out.Env = cloneTuples(a.Env)
	out.ExcludedResources = cloneResources(a.ExcludedResources)
	if a.ReviewAppsConfig != nil {
		out.ReviewAppsConfig = &model.ReviewAppsConfig{
			Enabled:           a.ReviewAppsConfig.Enabled,
			Vars:              cloneTuples(a.ReviewAppsConfig.Vars),
			ExcludedResources: cloneResources(a.ReviewAppsConfig.ExcludedResources),
		}
	}
	return &out
}

func cloneTuples(in []*model.Tuple) []*model.Tuple {
	if in == nil {
		return nil
	}
	out := make([]*model.Tuple, len(in))
	for i, t := range in {
		cp := *t
		out[i] = &cp
	}
	return out
}

func cloneResources(in []*model.Resource) []*model.Resource {
	if in == nil {
		return nil
	}
	out := make([]*model.Resource, len(in))
	for i, r := range in {
		cp := *r
		out[i] = &cp
	}
	return out
}
