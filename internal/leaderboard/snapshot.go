package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lcleaderboard/backend/internal/models"
)

// ObjectStorage persists an object and reports where it can be found.
type ObjectStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Snapshot is the archived form of one leaderboard.
type Snapshot struct {
	Owner       string              `json:"owner"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Entries     []models.StatRecord `json:"entries"`
}

// Exporter writes leaderboard snapshots to object storage. Snapshots are
// archives only and are never read back.
type Exporter struct {
	storage ObjectStorage
	now     func() time.Time
}

// NewExporter constructs an Exporter writing to storage.
func NewExporter(storage ObjectStorage) *Exporter {
	if storage == nil {
		panic("leaderboard: snapshot storage is required")
	}
	return &Exporter{storage: storage, now: time.Now}
}

// Export uploads entries as snapshots/<owner>/<timestamp>.json.
func (e *Exporter) Export(ctx context.Context, owner string, entries []models.StatRecord) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", fmt.Errorf("export snapshot: owner is required")
	}
	if entries == nil {
		entries = []models.StatRecord{}
	}

	generatedAt := e.now().UTC()
	payload, err := json.Marshal(Snapshot{Owner: owner, GeneratedAt: generatedAt, Entries: entries})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshots/%s/%s.json", owner, generatedAt.Format(time.RFC3339))
	location, err := e.storage.Save(ctx, key, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("export snapshot: %w", err)
	}
	return location, nil
}
