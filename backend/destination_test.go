package backend

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func populateFolder(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func folderNames(t *testing.T, dir string) map[string]bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names
}

func TestPrepareForBatch_EmptyFolder(t *testing.T) {
	d := NewDestination(t.TempDir(), false)

	// An empty folder (or sentinel-only folder) needs no confirmation.
	if err := d.PrepareForBatch(nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	populateFolder(t, d.Folder, SentinelFileName)
	if err := d.PrepareForBatch(nil); err != nil {
		t.Errorf("unexpected error with sentinel only: %v", err)
	}
}

func TestPrepareForBatch_Declined(t *testing.T) {
	d := NewDestination(t.TempDir(), false)
	populateFolder(t, d.Folder, "track1.ogg", "track2.ogg", SentinelFileName)

	err := d.PrepareForBatch(func(prompt string) bool { return false })
	if !errors.Is(err, ErrCleanDeclined) {
		t.Fatalf("expected ErrCleanDeclined, got %v", err)
	}

	// Nothing may be touched on refusal.
	names := folderNames(t, d.Folder)
	for _, want := range []string{"track1.ogg", "track2.ogg", SentinelFileName} {
		if !names[want] {
			t.Errorf("file %s was removed despite declined cleanup", want)
		}
	}
}

func TestPrepareForBatch_NilConfirmTreatedAsDecline(t *testing.T) {
	d := NewDestination(t.TempDir(), false)
	populateFolder(t, d.Folder, "track1.ogg")

	if err := d.PrepareForBatch(nil); !errors.Is(err, ErrCleanDeclined) {
		t.Errorf("expected ErrCleanDeclined, got %v", err)
	}
}

func TestPrepareForBatch_Approved(t *testing.T) {
	d := NewDestination(t.TempDir(), false)
	populateFolder(t, d.Folder, "track1.ogg", "stray.txt", SentinelFileName)

	var prompted bool
	err := d.PrepareForBatch(func(prompt string) bool {
		prompted = true
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prompted {
		t.Error("confirmation should have been requested")
	}

	names := folderNames(t, d.Folder)
	if !names[SentinelFileName] {
		t.Error("sentinel file must survive cleanup")
	}
	if names["track1.ogg"] || names["stray.txt"] {
		t.Errorf("stale files survived cleanup: %v", names)
	}
}

func TestNextTrackIndex(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected int
	}{
		{"empty folder", nil, 1},
		{"contiguous set", []string{"track1.ogg", "track2.ogg", "track3.ogg"}, 4},
		{"gapped set", []string{"track1.ogg", "track7.ogg"}, 8},
		{"unrelated files ignored", []string{"track2.ogg", "coverart.png", SentinelFileName, "track.ogg"}, 3},
		{"wrong extension ignored", []string{"track5.mp3"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDestination(t.TempDir(), false)
			populateFolder(t, d.Folder, tt.files...)

			got, err := d.NextTrackIndex()
			if err != nil {
				t.Fatalf("NextTrackIndex failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("NextTrackIndex = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestEnsure_CreatesFolder(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "CD1")
	d := NewDestination(folder, true)

	if err := d.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		t.Error("Ensure should create the destination folder")
	}

	if d.CoverPath() != filepath.Join(folder, CoverFileName) {
		t.Errorf("CoverPath = %q", d.CoverPath())
	}
}

func TestDestinationError_Typed(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	d := NewDestination(missing, false)

	// Read failures surface as *DestinationError so callers can tell
	// folder trouble apart from fetch or conversion trouble.
	var destErr *DestinationError
	if err := d.PrepareForBatch(nil); !errors.As(err, &destErr) {
		t.Errorf("PrepareForBatch on missing folder = %T, want *DestinationError", err)
	}
	if _, err := d.NextTrackIndex(); !errors.As(err, &destErr) {
		t.Errorf("NextTrackIndex on missing folder = %T, want *DestinationError", err)
	}
}

func TestEnsure_FailureIsTyped(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// A plain file where a parent directory should be makes MkdirAll fail.
	d := NewDestination(filepath.Join(blocker, "CD1"), true)
	err := d.Ensure()
	if err == nil {
		t.Fatal("expected Ensure to fail under a file path")
	}

	var destErr *DestinationError
	if !errors.As(err, &destErr) {
		t.Errorf("Ensure error = %T, want *DestinationError", err)
	}
}
