// Package store persists quiz history as one JSON document per
// profile, named history_<schoolType>_<grade>.json. The file layout is
// a compatibility contract with previously saved histories. The store
// assumes a single user in a single process; a mutex serializes access
// within the process, but concurrent processes writing the same
// profile race with last write winning.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/studyboost/booster/internal/model"
)

// ErrNoProfiles is returned when no history files exist yet.
var ErrNoProfiles = errors.New("no saved profiles found")

type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads the profile's history document. A missing file yields an
// empty document. An unreadable or corrupt file also yields an empty
// document, but the broken file is set aside as a .corrupt sidecar
// first so the data can be recovered by hand.
func (s *Store) Load(profile model.Profile) (model.HistoryDocument, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, profile.HistoryFile())
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.HistoryDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}

	var doc model.HistoryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.quarantine(path, err)
		return model.HistoryDocument{}, nil
	}
	if doc == nil {
		doc = model.HistoryDocument{}
	}
	return doc, nil
}

// quarantine moves a corrupt history file out of the way so the next
// save does not overwrite the only copy of the user's data.
func (s *Store) quarantine(path string, cause error) {
	sidecar := fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
	if err := os.Rename(path, sidecar); err != nil {
		slog.Error("failed to quarantine corrupt history file", "path", path, "error", err)
		return
	}
	slog.Warn("history file corrupt, starting with empty history",
		"path", path, "saved_as", sidecar, "error", cause)
}

// Save serializes the full document and replaces the profile's history
// file. It writes to a temp file in the same directory and renames it
// into place, which is atomic on POSIX filesystems.
func (s *Store) Save(profile model.Profile, doc model.HistoryDocument) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	path := filepath.Join(s.dir, profile.HistoryFile())
	tmp, err := os.CreateTemp(s.dir, profile.HistoryFile()+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history %s: %w", path, err)
	}
	return nil
}

// ListProfiles returns every profile that has a saved history file.
func (s *Store) ListProfiles() ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var profiles []model.Profile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p, ok := parseHistoryFile(e.Name())
		if !ok {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// LatestProfile returns the profile whose history file was modified
// most recently, used to resume the last session after a restart.
// Returns ErrNoProfiles when nothing has been saved yet.
func (s *Store) LatestProfile() (model.Profile, error) {
	profiles, err := s.ListProfiles()
	if err != nil {
		return model.Profile{}, err
	}
	if len(profiles) == 0 {
		return model.Profile{}, ErrNoProfiles
	}

	var latest model.Profile
	var latestMod time.Time
	for _, p := range profiles {
		info, err := os.Stat(filepath.Join(s.dir, p.HistoryFile()))
		if err != nil {
			continue
		}
		if info.ModTime().After(latestMod) || latestMod.IsZero() {
			latest = p
			latestMod = info.ModTime()
		}
	}
	if latestMod.IsZero() {
		return model.Profile{}, ErrNoProfiles
	}
	return latest, nil
}

// parseHistoryFile recovers a profile from a history file name.
func parseHistoryFile(name string) (model.Profile, bool) {
	if !strings.HasPrefix(name, "history_") || !strings.HasSuffix(name, ".json") {
		return model.Profile{}, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, "history_"), ".json")
	parts := strings.Split(core, "_")
	if len(parts) != 2 {
		return model.Profile{}, false
	}
	grade, err := strconv.Atoi(parts[1])
	if err != nil {
		return model.Profile{}, false
	}
	p := model.Profile{SchoolType: model.SchoolType(parts[0]), Grade: grade}
	if err := p.Validate(); err != nil {
		return model.Profile{}, false
	}
	return p, true
}
