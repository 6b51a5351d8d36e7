// Package syncer keeps the search index consistent with the products table.
// It composes the change set reader, the document mapper, the bulk batcher
// and the watermark store into the full and incremental sync operations.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/davidschrooten/catalog-search-sync/internal/bulk"
	"github.com/davidschrooten/catalog-search-sync/internal/search"
	"github.com/davidschrooten/catalog-search-sync/internal/sqlstore"
)

// CatalogStore reads the system-of-record products table
type CatalogStore interface {
	FetchActiveProducts(ctx context.Context) ([]sqlstore.Product, error)
	FetchChangesSince(ctx context.Context, since time.Time) ([]sqlstore.ProductChange, error)
	FetchProductByID(ctx context.Context, id int64) (*sqlstore.Product, error)
}

// SearchIndex is the slice of the search client the orchestrator uses directly
type SearchIndex interface {
	EnsureIndex(ctx context.Context) error
	UpsertDocument(ctx context.Context, doc search.Document) error
	DeleteDocument(ctx context.Context, id string) error
}

// BulkApplier applies mapped documents in batches
type BulkApplier interface {
	Apply(ctx context.Context, docs []search.Document) (*bulk.Report, error)
}

// WatermarkStore persists the incremental sync lower bound
type WatermarkStore interface {
	Read(ctx context.Context) time.Time
	Write(ctx context.Context, ts time.Time, syncType string) error
}

// Report describes the outcome of one sync run
type Report struct {
	Kind           string        `json:"kind"`
	Started        time.Time     `json:"started"`
	Duration       time.Duration `json:"duration"`
	Submitted      int           `json:"submitted"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Deleted        int           `json:"deleted"`
	FailureSamples []string      `json:"failureSamples,omitempty"`
	Suppressed     int           `json:"suppressed,omitempty"`
}

func (r *Report) addFailure(reason string, sampleLimit int) {
	r.Failed++
	if len(r.FailureSamples) < sampleLimit {
		r.FailureSamples = append(r.FailureSamples, reason)
	} else {
		r.Suppressed++
	}
}

// Service orchestrates full and incremental synchronization runs.
// It does not serialize concurrent runs; the scheduler is expected to
// enforce at most one instance per job.
type Service struct {
	store       CatalogStore
	index       SearchIndex
	batcher     BulkApplier
	watermarks  WatermarkStore
	sampleLimit int
	now         func() time.Time

	mu          sync.RWMutex
	lastReports map[string]*Report
}

// NewService wires the orchestrator from its collaborators
func NewService(store CatalogStore, index SearchIndex, batcher BulkApplier, watermarks WatermarkStore, sampleLimit int) *Service {
	if sampleLimit <= 0 {
		sampleLimit = 5
	}
	return &Service{
		store:       store,
		index:       index,
		batcher:     batcher,
		watermarks:  watermarks,
		sampleLimit: sampleLimit,
		now:         time.Now,
		lastReports: make(map[string]*Report),
	}
}

// FullSync re-pushes every active product into the search index. Partial bulk
// failures are reported, not fatal; a failed read or index creation aborts the run.
func (s *Service) FullSync(ctx context.Context) (*Report, error) {
	runStart := s.now().UTC()
	log.Println("[FULL SYNC] Starting")

	report := &Report{Kind: "full", Started: runStart}

	if err := s.index.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("full sync: %w", err)
	}

	products, err := s.store.FetchActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("full sync: %w", err)
	}
	log.Printf("[FULL SYNC] Found %d products", len(products))

	if len(products) > 0 {
		docs := make([]search.Document, len(products))
		for i, p := range products {
			docs[i] = search.MapProduct(p)
		}

		bulkReport, err := s.batcher.Apply(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("full sync: %w", err)
		}
		report.Submitted = bulkReport.Submitted
		report.Succeeded = bulkReport.Succeeded
		report.Failed = bulkReport.Failed
		report.FailureSamples = bulkReport.FailureSamples
		report.Suppressed = bulkReport.Suppressed
	}

	// Courtesy marker only; full sync correctness does not depend on it
	if err := s.watermarks.Write(ctx, runStart, "full"); err != nil {
		log.Printf("[FULL SYNC] Failed to update watermark: %v", err)
	}

	report.Duration = s.now().Sub(runStart)
	s.recordReport(report)
	log.Printf("[FULL SYNC] Completed: %d submitted, %d succeeded, %d failed", report.Submitted, report.Succeeded, report.Failed)
	return report, nil
}

// IncrementalSync applies every change recorded after the current watermark,
// then advances the watermark to this run's start time. Per-record failures
// are counted and logged without stopping the loop.
func (s *Service) IncrementalSync(ctx context.Context) (*Report, error) {
	runStart := s.now().UTC()
	log.Println("[INCREMENTAL SYNC] Starting")

	report := &Report{Kind: "incremental", Started: runStart}

	since := s.watermarks.Read(ctx)
	log.Printf("[INCREMENTAL SYNC] Last sync: %s", since.Format(time.RFC3339))

	changes, err := s.store.FetchChangesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("incremental sync: %w", err)
	}
	log.Printf("[INCREMENTAL SYNC] Found %d changes", len(changes))

	if len(changes) == 0 {
		// An empty run still advances the watermark: it proves liveness
		if err := s.watermarks.Write(ctx, runStart, "incremental"); err != nil {
			return nil, fmt.Errorf("incremental sync: %w", err)
		}
		report.Duration = s.now().Sub(runStart)
		s.recordReport(report)
		log.Println("[INCREMENTAL SYNC] No changes")
		return report, nil
	}

	for _, change := range changes {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		report.Submitted++
		if change.IsDeleted {
			s.applyDelete(ctx, change.ID, report)
		} else {
			s.applyUpsert(ctx, change.ID, report)
		}
	}

	// Advance to the run-start time, not "now": a record updated while this
	// run executed must still fall above the next run's lower bound.
	if err := s.watermarks.Write(ctx, runStart, "incremental"); err != nil {
		return nil, fmt.Errorf("incremental sync: %w", err)
	}

	report.Duration = s.now().Sub(runStart)
	s.recordReport(report)
	log.Printf("[INCREMENTAL SYNC] Completed: %d submitted, %d succeeded (%d deleted), %d failed",
		report.Submitted, report.Succeeded, report.Deleted, report.Failed)
	return report, nil
}

func (s *Service) applyDelete(ctx context.Context, id int64, report *Report) {
	docID := fmt.Sprintf("%d", id)
	if err := s.index.DeleteDocument(ctx, docID); err != nil {
		log.Printf("  Failed to delete product %d: %v", id, err)
		report.addFailure(fmt.Sprintf("delete %d: %v", id, err), s.sampleLimit)
		return
	}
	report.Succeeded++
	report.Deleted++
	log.Printf("  Deleted product %d", id)
}

func (s *Service) applyUpsert(ctx context.Context, id int64, report *Report) {
	product, err := s.store.FetchProductByID(ctx, id)
	if err != nil {
		log.Printf("  Failed to fetch product %d: %v", id, err)
		report.addFailure(fmt.Sprintf("fetch %d: %v", id, err), s.sampleLimit)
		return
	}
	if product == nil {
		log.Printf("  Product %d vanished from the catalog, skipping", id)
		report.addFailure(fmt.Sprintf("fetch %d: row not found", id), s.sampleLimit)
		return
	}

	if err := s.index.UpsertDocument(ctx, search.MapProduct(*product)); err != nil {
		log.Printf("  Failed to sync product %d: %v", id, err)
		report.addFailure(fmt.Sprintf("upsert %d: %v", id, err), s.sampleLimit)
		return
	}
	report.Succeeded++
	log.Printf("  Synced product %d", id)
}

func (s *Service) recordReport(report *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReports[report.Kind] = report
}

// LastReports returns a copy of the most recent report per sync kind
func (s *Service) LastReports() map[string]*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*Report, len(s.lastReports))
	for kind, report := range s.lastReports {
		reportCopy := *report
		result[kind] = &reportCopy
	}
	return result
}
