package mapping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.yaml.in/yaml/v3"
)

// snapshot is the on-disk document. Field names match the mappings.json
// layout so existing files load unchanged.
type snapshot struct {
	Mappings    []Mapping `json:"mappings" yaml:"mappings"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"lastUpdated"`
}

// FileStore keeps every mapping in memory and rewrites a single snapshot file
// on each mutation. The file format follows the extension: .yaml and .yml are
// YAML, anything else is JSON.
type FileStore struct {
	mu      sync.Mutex
	path    string
	yaml    bool
	history []Mapping
	active  map[string]int // hostname → index into history
	log     logr.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads the snapshot at path. A missing file starts an empty store;
// an unreadable or corrupt file is an error.
func NewFileStore(log logr.Logger, path string) (*FileStore, error) {
	ext := strings.ToLower(filepath.Ext(path))
	s := &FileStore{
		path:   path,
		yaml:   ext == ".yaml" || ext == ".yml",
		active: map[string]int{},
		log:    log,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("no mapping snapshot found, starting empty", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading mapping snapshot: %w", err)
	}

	var snap snapshot
	if len(bytes.TrimSpace(data)) > 0 {
		if s.yaml {
			err = yaml.Unmarshal(data, &snap)
		} else {
			err = json.Unmarshal(data, &snap)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing mapping snapshot %s: %w", path, err)
		}
	}

	s.history = snap.Mappings
	for i := range s.history {
		m := &s.history[i]
		m.Hostname = NormalizeHostname(m.Hostname)
		if !m.Active {
			continue
		}
		// An older duplicate loses to the later record, as Add would have done.
		if prev, ok := s.active[m.Hostname]; ok {
			log.Info("deactivating duplicate active mapping", "hostname", m.Hostname, "id", s.history[prev].ID)
			s.history[prev].Active = false
		}
		s.active[m.Hostname] = i
	}
	log.V(1).Info("loaded mapping snapshot", "path", path, "records", len(s.history), "active", len(s.active))
	return s, nil
}

func (s *FileStore) List(_ context.Context) ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Mapping, 0, len(s.active))
	for _, m := range s.history {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *FileStore) GetByID(_ context.Context, id string) (Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.active {
		if s.history[i].ID == id {
			return s.history[i], nil
		}
	}
	return Mapping{}, ErrNotFound
}

func (s *FileStore) GetByHostname(_ context.Context, hostname string) (Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.active[NormalizeHostname(hostname)]; ok {
		return s.history[i], nil
	}
	return Mapping{}, ErrNotFound
}

func (s *FileStore) History(_ context.Context, hostname string) ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hostname = NormalizeHostname(hostname)
	var out []Mapping
	for _, m := range s.history {
		if m.Hostname == hostname {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *FileStore) Add(_ context.Context, m Mapping) error {
	if err := Validate(m); err != nil {
		return err
	}
	m.Hostname = NormalizeHostname(m.Hostname)
	m.Active = true
	m.RemovedAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	next := s.cloneHistory(1)
	if i, ok := s.active[m.Hostname]; ok {
		next[i].Active = false
		next[i].RemovedAt = &now
	}
	next = append(next, m)

	if err := s.write(next, now); err != nil {
		return err
	}
	s.history = next
	s.active[m.Hostname] = len(next) - 1
	return nil
}

func (s *FileStore) RemoveByHostname(_ context.Context, hostname string) (bool, error) {
	hostname = NormalizeHostname(hostname)

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.active[hostname]
	if !ok {
		return false, nil
	}

	now := time.Now().UTC()
	next := s.cloneHistory(0)
	next[i].Active = false
	next[i].RemovedAt = &now

	if err := s.write(next, now); err != nil {
		return false, err
	}
	s.history = next
	delete(s.active, hostname)
	return true, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) cloneHistory(extra int) []Mapping {
	next := make([]Mapping, len(s.history), len(s.history)+extra)
	copy(next, s.history)
	return next
}

// write replaces the snapshot atomically: the document goes to a temp file in
// the same directory which is then renamed over the old one.
func (s *FileStore) write(mappings []Mapping, now time.Time) error {
	snap := snapshot{Mappings: mappings, LastUpdated: now}
	if snap.Mappings == nil {
		snap.Mappings = []Mapping{}
	}

	var (
		data []byte
		err  error
	)
	if s.yaml {
		data, err = yaml.Marshal(&snap)
	} else {
		data, err = json.MarshalIndent(&snap, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding mapping snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing mapping snapshot: %w", err)
	}
	s.log.V(1).Info("mapping snapshot written", "path", s.path, "records", len(mappings))
	return nil
}
