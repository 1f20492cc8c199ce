package backend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunRecord summarizes one completed (or failed/cancelled) run.
type RunRecord struct {
	ID        string    `json:"id"`
	Slot      string    `json:"slot"`
	Source    string    `json:"source"` // URL or "<n> local files"
	State     string    `json:"state"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	ElapsedMS int64     `json:"elapsedMs"`
	StartedAt time.Time `json:"startedAt"`
}

// History manages the persisted run history.
type History struct {
	entries  []RunRecord
	filePath string
	mu       sync.RWMutex
}

// NewHistory creates a History manager backed by the app data dir.
func NewHistory() *History {
	h := &History{
		entries:  []RunRecord{},
		filePath: filepath.Join(GetDataPath(), "history.json"),
	}
	h.load()
	return h
}

func (h *History) load() {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.filePath)
	if err != nil {
		h.entries = []RunRecord{}
		return
	}
	if err := json.Unmarshal(data, &h.entries); err != nil {
		h.entries = []RunRecord{}
	}
}

func (h *History) save() error {
	h.mu.RLock()
	data, err := json.MarshalIndent(h.entries, "", "  ")
	h.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(h.filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(h.filePath, data, 0644)
}

// Add records a run and persists the history.
func (h *History) Add(record RunRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	h.mu.Lock()
	h.entries = append(h.entries, record)
	h.mu.Unlock()

	return h.save()
}

// Entries returns the history, most recent first.
func (h *History) Entries() []RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]RunRecord, len(h.entries))
	copy(out, h.entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
