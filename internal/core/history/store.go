// Copyright 2025 Clipforge, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history persists per-item export outcomes across process
// restarts. The in-memory batch registry answers "what is this batch doing
// right now"; the history store answers "what happened to this item last
// week". Backed by an embedded pebble database so a single-node deployment
// needs no external state service.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/clipforge/clip-export/internal/core/model"
)

// Record is one item's final outcome for one attempt. Retries overwrite the
// previous record for the same item, keeping the store at one row per item.
type Record struct {
	ItemID     string           `json:"item_id"`
	BatchID    string           `json:"batch_id"`
	ClipID     int64            `json:"clip_id"`
	Format     string           `json:"format"`
	Platform   string           `json:"platform"`
	Status     model.ItemStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	ResultURL  string           `json:"result_url,omitempty"`
	StorageKey string           `json:"storage_key,omitempty"`
	RetryCount int              `json:"retry_count"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// ErrNotFound is returned by Get when no record exists for the item.
var ErrNotFound = errors.New("history: record not found")

// Store is a pebble-backed history of export outcomes. Safe for concurrent
// use; pebble serializes writes internally.
type Store struct {
	db *pebble.DB
}

// Open creates or reopens the history database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening history store at %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Record writes the outcome for one settled item, replacing any earlier
// record for the same item ID.
func (s *Store) Record(rec *Record) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding history record %s: %w", rec.ItemID, err)
	}
	if err := s.db.Set([]byte(rec.ItemID), payload, pebble.Sync); err != nil {
		return fmt.Errorf("writing history record %s: %w", rec.ItemID, err)
	}
	return nil
}

// Get returns the stored record for an item, or ErrNotFound.
func (s *Store) Get(itemID string) (*Record, error) {
	value, closer, err := s.db.Get([]byte(itemID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading history record %s: %w", itemID, err)
	}
	defer func() { _ = closer.Close() }()

	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("decoding history record %s: %w", itemID, err)
	}
	return &rec, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(limit int) ([]*Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("iterating history store: %w", err)
	}
	defer func() { _ = iter.Close() }()

	var records []*Record
	for valid := iter.First(); valid; valid = iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			// A corrupt row should not hide the rest of the history.
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// CleanupOlderThan deletes records recorded before the cutoff and returns
// how many were removed. Run periodically so the embedded database does not
// grow without bound.
func (s *Store) CleanupOlderThan(cutoff time.Time) (int, error) {
	records, err := s.List(0)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range records {
		if rec.RecordedAt.Before(cutoff) {
			if err := s.db.Delete([]byte(rec.ItemID), pebble.Sync); err != nil {
				return removed, fmt.Errorf("deleting history record %s: %w", rec.ItemID, err)
			}
			removed++
		}
	}
	return removed, nil
}

// StartCleanupTimer launches a background loop that prunes records older
// than retention once a day, until ctx is cancelled.
func (s *Store) StartCleanupTimer(ctx context.Context, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.CleanupOlderThan(time.Now().Add(-retention))
				if err != nil {
					slog.Warn("history cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("pruned export history", "removed", removed)
				}
			}
		}
	}()
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
