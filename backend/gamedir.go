package backend

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// My Summer Car install discovery and output slot mapping.

// Slot is one of the fixed output locations the game reads custom audio
// from.
type Slot string

const (
	SlotRadio Slot = "Radio"
	SlotCD1   Slot = "CD1"
	SlotCD2   Slot = "CD2"
	SlotCD3   Slot = "CD3"
)

// AllSlots returns the slots in display order.
func AllSlots() []Slot {
	return []Slot{SlotRadio, SlotCD1, SlotCD2, SlotCD3}
}

// ParseSlot validates a slot name, case-insensitively.
func ParseSlot(name string) (Slot, bool) {
	for _, s := range AllSlots() {
		if strings.EqualFold(name, string(s)) {
			return s, true
		}
	}
	return "", false
}

// CoverCapable reports whether the slot displays cover art in-game.
// Only the CD slots do.
func (s Slot) CoverCapable() bool {
	return strings.HasPrefix(string(s), "CD")
}

// Folder returns the slot's destination folder under the game dir.
func (s Slot) Folder(gameDir string) string {
	return filepath.Join(gameDir, string(s))
}

const gameFolderName = "My Summer Car"

var libraryPathRe = regexp.MustCompile(`"\d+"\s*"\s*([^"]+)\s*"`)

// parseLibraryFolders extracts additional Steam library roots from the
// contents of libraryfolders.vdf.
func parseLibraryFolders(vdf string) []string {
	var paths []string
	for _, m := range libraryPathRe.FindAllStringSubmatch(vdf, -1) {
		paths = append(paths, strings.ReplaceAll(m[1], `\\`, `\`))
	}
	return paths
}

// steamRoots returns candidate Steam install roots for the platform.
func steamRoots() []string {
	if runtime.GOOS == "windows" {
		return []string{`C:\Program Files (x86)\Steam`}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
	}
}

// steamLibraries returns all steamapps directories reachable from the
// given Steam root, including extra libraries from libraryfolders.vdf.
func steamLibraries(steamRoot string) []string {
	libraries := []string{filepath.Join(steamRoot, "steamapps")}

	vdfPath := filepath.Join(steamRoot, "steamapps", "libraryfolders.vdf")
	data, err := os.ReadFile(vdfPath)
	if err != nil {
		return libraries
	}

	for _, p := range parseLibraryFolders(string(data)) {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			libraries = append(libraries, filepath.Join(p, "steamapps"))
		}
	}
	return libraries
}

// FindGameDir locates the My Summer Car installation across all Steam
// libraries. When nothing is found it returns the default install path
// so the caller can still create slot folders there.
func FindGameDir() string {
	for _, root := range steamRoots() {
		for _, lib := range steamLibraries(root) {
			dir := filepath.Join(lib, "common", gameFolderName)
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return dir
			}
		}
	}

	if runtime.GOOS == "windows" {
		return filepath.Join(`C:\Program Files (x86)\Steam`, "steamapps", "common", gameFolderName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".steam", "steam", "steamapps", "common", gameFolderName)
}
