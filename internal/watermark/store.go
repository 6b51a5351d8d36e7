// Package watermark persists the last-successful-sync timestamp as a
// single document inside the search cluster's metadata index.
package watermark

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// DocumentID is the fixed id of the watermark document
const DocumentID = "last_sync"

// MetadataClient is the slice of the search client the store needs
type MetadataClient interface {
	GetDocument(ctx context.Context, index, id string) (json.RawMessage, bool, error)
	PutDocument(ctx context.Context, index, id string, body any) error
	EnsureBareIndex(ctx context.Context, index string) error
}

// Record is the stored watermark document
type Record struct {
	ID       string    `json:"id"`
	LastSync time.Time `json:"lastSync"`
	SyncType string    `json:"syncType"`
}

// Store reads and writes the sync watermark
type Store struct {
	client   MetadataClient
	index    string
	lookback time.Duration
	now      func() time.Time
}

// NewStore creates a watermark store over the given metadata index.
// The lookback bounds the window of a first run, when no watermark exists yet.
func NewStore(client MetadataClient, index string, lookback time.Duration) *Store {
	return &Store{
		client:   client,
		index:    index,
		lookback: lookback,
		now:      time.Now,
	}
}

// Read returns the persisted watermark. Any failure (missing index, missing
// document, transport error, bad payload) yields the default lookback value:
// re-scanning a bounded window is safer than skipping records.
func (s *Store) Read(ctx context.Context) time.Time {
	fallback := s.now().UTC().Add(-s.lookback)

	raw, found, err := s.client.GetDocument(ctx, s.index, DocumentID)
	if err != nil {
		log.Printf("Failed to read watermark, using default lookback: %v", err)
		return fallback
	}
	if !found {
		log.Printf("No watermark found, using default lookback of %s", s.lookback)
		return fallback
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Printf("Failed to parse watermark document, using default lookback: %v", err)
		return fallback
	}
	if rec.LastSync.IsZero() {
		return fallback
	}

	return rec.LastSync.UTC()
}

// Write persists the watermark, creating the metadata index on first use
func (s *Store) Write(ctx context.Context, ts time.Time, syncType string) error {
	if err := s.client.EnsureBareIndex(ctx, s.index); err != nil {
		return fmt.Errorf("failed to ensure metadata index: %w", err)
	}

	rec := Record{
		ID:       DocumentID,
		LastSync: ts.UTC(),
		SyncType: syncType,
	}
	if err := s.client.PutDocument(ctx, s.index, DocumentID, rec); err != nil {
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	return nil
}
