// Package dataset holds the static search corpus in memory and answers
// keyword scans and random picks over it. Decrypting the corpus on disk is
// a deployment concern; this package accepts plain JSON.
package dataset

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kmalkov/searchgate/internal/model"
)

// Index is an immutable view over the loaded corpus.
type Index struct {
	name      string
	notes     string
	createdAt time.Time
	records   []model.DatasetRecord

	mu  sync.Mutex
	rng *rand.Rand
}

// file is the on-disk envelope: {"name", "time" (ms), "notes", "db_data"}.
type file struct {
	Name   string       `json:"name"`
	TimeMS int64        `json:"time"`
	Notes  string       `json:"notes"`
	Data   []wireRecord `json:"db_data"`
}

// wireRecord decodes the positional [code, decoderKind, description] triple.
type wireRecord model.DatasetRecord

func (r *wireRecord) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) < 3 {
		return fmt.Errorf("dataset record needs 3 fields, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &r.Code); err != nil {
		return fmt.Errorf("record code: %w", err)
	}
	if err := json.Unmarshal(parts[1], &r.DecoderKind); err != nil {
		return fmt.Errorf("record decoder kind: %w", err)
	}
	if err := json.Unmarshal(parts[2], &r.Description); err != nil {
		return fmt.Errorf("record description: %w", err)
	}
	return nil
}

// Load reads and indexes a corpus file.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	records := make([]model.DatasetRecord, len(f.Data))
	for i, r := range f.Data {
		records[i] = model.DatasetRecord(r)
	}
	return &Index{
		name:      f.Name,
		notes:     f.Notes,
		createdAt: time.UnixMilli(f.TimeMS),
		records:   records,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// NewFromRecords builds an index directly (tests, embedded corpora).
func NewFromRecords(name string, records []model.DatasetRecord) *Index {
	return &Index{
		name:    name,
		records: records,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Search returns every record whose description contains the keyword,
// case-insensitively, in stable corpus order.
func (ix *Index) Search(keyword string) []model.DatasetRecord {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil
	}
	var out []model.DatasetRecord
	for _, rec := range ix.records {
		if strings.Contains(strings.ToLower(rec.Description), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// Random picks one record uniformly; false when the corpus is empty.
func (ix *Index) Random() (model.DatasetRecord, bool) {
	if len(ix.records) == 0 {
		return model.DatasetRecord{}, false
	}
	ix.mu.Lock()
	n := ix.rng.Intn(len(ix.records))
	ix.mu.Unlock()
	return ix.records[n], true
}

// Len reports the corpus size.
func (ix *Index) Len() int { return len(ix.records) }

// Name returns the corpus name for diagnostics.
func (ix *Index) Name() string { return ix.name }

// Notes returns the corpus notes for diagnostics.
func (ix *Index) Notes() string { return ix.notes }

// CreatedAt returns the corpus build time for diagnostics.
func (ix *Index) CreatedAt() time.Time { return ix.createdAt }
