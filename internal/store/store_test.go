package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/studyboost/booster/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	return s
}

func sampleDoc() model.HistoryDocument {
	return model.HistoryDocument{
		"数学": {
			{Date: "03/14 09:26", Page: "42", Score: "80%", Quizzes: []model.Quiz{
				{Question: "q", Options: []string{"a", "b"}, Answer: 1, Location: "P.42"},
			}},
		},
		"理科": {
			{Date: "03/15 18:00", Page: "7", Score: "100%"},
		},
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load(model.Profile{SchoolType: model.SchoolMiddle, Grade: 3})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("expected empty document, got %d subjects", len(doc))
	}
	if doc == nil {
		t.Error("document should be usable, not nil")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	profile := model.Profile{SchoolType: model.SchoolMiddle, Grade: 3}
	doc := sampleDoc()

	if err := s.Save(profile, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(profile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, doc)
	}
}

func TestSaveLoadEmptyDocument(t *testing.T) {
	s := newTestStore(t)
	profile := model.Profile{SchoolType: model.SchoolMiddle, Grade: 3}

	if err := s.Save(profile, model.HistoryDocument{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(profile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty document, got %+v", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	profile := model.Profile{SchoolType: model.SchoolHigh, Grade: 1}

	first := model.HistoryDocument{"数学": {{Date: "01/01 10:00", Page: "1", Score: "50%"}}}
	if err := s.Save(profile, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := model.HistoryDocument{"英語": {{Date: "01/02 10:00", Page: "2", Score: "100%"}}}
	if err := s.Save(profile, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(profile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, second) {
		t.Errorf("expected last write to win, got %+v", got)
	}
}

func TestLoadCorruptFileQuarantined(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	profile := model.Profile{SchoolType: model.SchoolElementary, Grade: 2}

	path := filepath.Join(dir, profile.HistoryFile())
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	doc, err := s.Load(profile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("expected empty document for corrupt file, got %+v", doc)
	}

	// Original file should be preserved under a .corrupt sidecar.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt file should have been moved aside")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			found = true
		}
	}
	if !found {
		t.Error("expected a .corrupt sidecar file")
	}
}

func TestProfileFileNaming(t *testing.T) {
	s := newTestStore(t)
	profile := model.Profile{SchoolType: model.SchoolMiddle, Grade: 3}

	if err := s.Save(profile, model.HistoryDocument{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.dir, "history_middle_3.json")); err != nil {
		t.Errorf("expected history_middle_3.json on disk: %v", err)
	}
}

func TestInvalidProfileRejected(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Load(model.Profile{SchoolType: "kindergarten", Grade: 1}); err == nil {
		t.Error("expected error for invalid school type")
	}
	if err := s.Save(model.Profile{SchoolType: model.SchoolMiddle, Grade: 9}, model.HistoryDocument{}); err == nil {
		t.Error("expected error for invalid grade")
	}
}

func TestListProfiles(t *testing.T) {
	s := newTestStore(t)

	profiles, err := s.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(profiles) != 0 {
		t.Fatalf("expected no profiles, got %d", len(profiles))
	}

	for _, p := range []model.Profile{
		{SchoolType: model.SchoolElementary, Grade: 4},
		{SchoolType: model.SchoolMiddle, Grade: 2},
	} {
		if err := s.Save(p, model.HistoryDocument{}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "history_bogus_99.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write bogus file: %v", err)
	}

	profiles, err = s.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Errorf("expected 2 profiles, got %d: %+v", len(profiles), profiles)
	}
}

func TestLatestProfile(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LatestProfile(); !errors.Is(err, ErrNoProfiles) {
		t.Errorf("expected ErrNoProfiles, got %v", err)
	}

	older := model.Profile{SchoolType: model.SchoolElementary, Grade: 1}
	newer := model.Profile{SchoolType: model.SchoolHigh, Grade: 3}
	if err := s.Save(older, model.HistoryDocument{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(newer, model.HistoryDocument{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Make the modification order unambiguous.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(s.dir, older.HistoryFile()), past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	got, err := s.LatestProfile()
	if err != nil {
		t.Fatalf("LatestProfile: %v", err)
	}
	if got != newer {
		t.Errorf("LatestProfile = %+v, want %+v", got, newer)
	}
}

func TestAppendThenPersist(t *testing.T) {
	s := newTestStore(t)
	profile := model.Profile{SchoolType: model.SchoolMiddle, Grade: 1}

	doc, err := s.Load(profile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entry := model.NewHistoryEntry(time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC), "12", "75%", nil)
	doc.Append(model.SubjectSocial, entry)

	// Appending alone must not touch the disk.
	reloaded, err := s.Load(profile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reloaded) != 0 {
		t.Error("append should not persist without Save")
	}

	if err := s.Save(profile, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err = s.Load(profile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entries := reloaded[string(model.SubjectSocial)]
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Date != "03/14 09:26" {
		t.Errorf("date = %q, want %q", entries[0].Date, "03/14 09:26")
	}
}
