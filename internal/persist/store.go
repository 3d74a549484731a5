package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// PlaygroundSnapshot captures a playground for persistence.
type PlaygroundSnapshot struct {
	ID       schema.PlaygroundID  `json:"id"`
	State    schema.StateSnapshot `json:"state"`
	Sessions uint64               `json:"sessions,omitempty"`
	SavedAt  time.Time            `json:"saved_at"`
}

// Store persists playground snapshots to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a playground snapshot from disk.
func (s *Store) Load(id schema.PlaygroundID) (PlaygroundSnapshot, bool, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "playground", id)
			}
			return PlaygroundSnapshot{}, false, nil
		}
		s.warn("state load failed", id, err)
		return PlaygroundSnapshot{}, false, err
	}
	var snapshot PlaygroundSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.warn("state load failed", id, err)
		return PlaygroundSnapshot{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "playground", id, "sessions", snapshot.Sessions)
	}
	return snapshot, true, nil
}

// Save writes a playground snapshot to disk atomically.
func (s *Store) Save(snapshot PlaygroundSnapshot) error {
	id := snapshot.ID
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		s.warn("state save failed", id, err)
		return err
	}
	if err := writeAtomic(s.pathFor(id), data); err != nil {
		s.warn("state save failed", id, err)
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "playground", id, "bytes", len(data))
	}
	return nil
}

// Delete removes a stored snapshot. Missing snapshots are not an error.
func (s *Store) Delete(id schema.PlaygroundID) error {
	if err := os.Remove(s.pathFor(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("state delete failed", id, err)
		return err
	}
	return nil
}

// List returns the ids of stored snapshots in lexical order.
func (s *Store) List() ([]schema.PlaygroundID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]schema.PlaygroundID, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "state-") {
			continue
		}
		ids = append(ids, schema.PlaygroundID(strings.TrimSuffix(name, ".json")))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) warn(msg string, id schema.PlaygroundID, err error) {
	if s.log != nil {
		s.log.Warn(msg, "playground", id, "err", err)
	}
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) pathFor(id schema.PlaygroundID) string {
	name := sanitize(string(id))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
