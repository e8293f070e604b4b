package utility

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EstimateEntry is one line of the calorie estimate journal.
type EstimateEntry struct {
	Time       time.Time `json:"time"`
	UserID     string    `json:"user_id"`
	Mode       string    `json:"mode"`
	Input      string    `json:"input,omitempty"`
	Name       string    `json:"name"`
	Calories   int       `json:"calories"`
	ProteinG   float64   `json:"protein_g"`
	CarbsG     float64   `json:"carbs_g"`
	FatG       float64   `json:"fat_g"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale,omitempty"`
}

// EstimateJournal is an append-only JSON-lines file of calorie estimates.
type EstimateJournal struct {
	mu   sync.Mutex
	path string
}

func NewEstimateJournal(path string) *EstimateJournal {
	return &EstimateJournal{path: path}
}

// Append writes e as one JSON line. Times are always RFC 3339.
func (j *EstimateJournal) Append(e EstimateEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Recent returns up to n entries for userID, newest first. An empty userID
// matches every entry. A missing file is an empty journal.
func (j *EstimateJournal) Recent(userID string, n int) ([]EstimateEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return []EstimateEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var all []EstimateEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e EstimateEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if userID == "" || e.UserID == userID {
			all = append(all, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	out := make([]EstimateEntry, 0, Min(n, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
