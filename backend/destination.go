package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Destination folder lifecycle: pre-run cleanup, track numbering and
// cover placement.

const (
	// SentinelFileName is the game's own file in a slot folder; cleanup
	// must never delete it.
	SentinelFileName = "songnames.xml"

	// CoverFileName is the finalized cover image for CD slots.
	CoverFileName = "coverart.png"
)

// ErrCleanDeclined is returned when the user refuses the destructive
// folder cleanup; the run must abort before any network activity.
var ErrCleanDeclined = errors.New("destination cleanup declined")

// DestinationError reports a failure to create, read or prepare the
// output folder.
type DestinationError struct {
	Folder string
	Op     string
	Err    error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("destination %s: %s: %v", e.Folder, e.Op, e.Err)
}

func (e *DestinationError) Unwrap() error { return e.Err }

// ConfirmFunc is the yes/no gate consulted before destructive cleanup.
type ConfirmFunc func(prompt string) bool

// Destination owns one output slot folder for the duration of a run.
type Destination struct {
	Folder       string
	CoverCapable bool
}

// NewDestination creates a Destination for the given folder.
func NewDestination(folder string, coverCapable bool) *Destination {
	return &Destination{Folder: folder, CoverCapable: coverCapable}
}

// Ensure creates the destination folder if missing.
func (d *Destination) Ensure() error {
	if err := os.MkdirAll(d.Folder, 0755); err != nil {
		return &DestinationError{Folder: d.Folder, Op: "create", Err: err}
	}
	return nil
}

// PrepareForBatch readies the folder for a fresh batch run. If any file
// other than the sentinel exists, confirm is consulted first; on refusal
// ErrCleanDeclined is returned and nothing is touched. On approval every
// non-sentinel file is removed. Individual removal failures are logged
// and skipped.
func (d *Destination) PrepareForBatch(confirm ConfirmFunc) error {
	entries, err := os.ReadDir(d.Folder)
	if err != nil {
		return &DestinationError{Folder: d.Folder, Op: "read", Err: err}
	}

	var existing []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == SentinelFileName {
			continue
		}
		existing = append(existing, e.Name())
	}

	if len(existing) == 0 {
		return nil
	}

	prompt := fmt.Sprintf("The folder %s is not empty. Delete ALL %d file(s) in it and continue?",
		d.Folder, len(existing))
	if confirm == nil || !confirm(prompt) {
		return ErrCleanDeclined
	}

	for _, name := range existing {
		if err := os.Remove(filepath.Join(d.Folder, name)); err != nil {
			slog.Warn("failed to remove file during cleanup", "file", name, "err", err)
		}
	}
	return nil
}

var trackIndexRe = regexp.MustCompile(`^track(\d+)` + regexp.QuoteMeta(TrackExt) + `$`)

// NextTrackIndex scans the folder for existing track<N>.ogg files and
// returns max(N)+1, or 1 when none exist. Used by single-track appends
// so a new track never clobbers an existing set.
func (d *Destination) NextTrackIndex() (int, error) {
	entries, err := os.ReadDir(d.Folder)
	if err != nil {
		return 0, &DestinationError{Folder: d.Folder, Op: "read", Err: err}
	}

	max := 0
	for _, e := range entries {
		m := trackIndexRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// CoverPath returns the finalized cover image path for this folder.
func (d *Destination) CoverPath() string {
	return filepath.Join(d.Folder, CoverFileName)
}
