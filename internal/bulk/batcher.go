// Package bulk partitions search documents into fixed-size batches and
// applies them with one bulk request per batch, classifying per-item outcomes.
package bulk

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/davidschrooten/catalog-search-sync/internal/search"
)

// Writer is the slice of the search client the batcher needs
type Writer interface {
	BulkUpsert(ctx context.Context, docs []search.Document) ([]search.ItemResult, error)
}

// Report aggregates the outcome of one batched apply
type Report struct {
	Submitted      int      `json:"submitted"`
	Succeeded      int      `json:"succeeded"`
	Failed         int      `json:"failed"`
	FailureSamples []string `json:"failureSamples,omitempty"`
	Suppressed     int      `json:"suppressed,omitempty"`
}

// addFailure records a failure, keeping only the first sampleLimit reasons
func (r *Report) addFailure(reason string, sampleLimit int) {
	r.Failed++
	if len(r.FailureSamples) < sampleLimit {
		r.FailureSamples = append(r.FailureSamples, reason)
	} else {
		r.Suppressed++
	}
}

// Batcher applies documents in fixed-size sequential batches
type Batcher struct {
	writer      Writer
	size        int
	sampleLimit int
	limiter     *rate.Limiter
}

// NewBatcher creates a batcher with the given batch size and inter-batch pause
func NewBatcher(writer Writer, size int, pause time.Duration, sampleLimit int) *Batcher {
	if size <= 0 {
		size = 1000
	}
	if sampleLimit <= 0 {
		sampleLimit = 5
	}
	return &Batcher{
		writer:      writer,
		size:        size,
		sampleLimit: sampleLimit,
		limiter:     rate.NewLimiter(rate.Every(pause), 1),
	}
}

// Apply partitions docs into batches and submits them strictly sequentially.
// Per-item and whole-batch failures are counted in the report; only context
// cancellation aborts the loop early.
func (b *Batcher) Apply(ctx context.Context, docs []search.Document) (*Report, error) {
	report := &Report{}

	for start := 0; start < len(docs); start += b.size {
		// The limiter enforces the fixed pause between batch submissions
		if err := b.limiter.Wait(ctx); err != nil {
			return report, err
		}

		end := start + b.size
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		report.Submitted += len(batch)

		results, err := b.writer.BulkUpsert(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			// Transport failure: the whole batch counts as failed
			log.Printf("Bulk batch of %d failed: %v", len(batch), err)
			for range batch {
				report.addFailure(err.Error(), b.sampleLimit)
			}
			continue
		}

		for _, res := range results {
			if res.OK() {
				report.Succeeded++
				continue
			}
			report.addFailure(fmt.Sprintf("document %s: status %d: %s", res.ID, res.Status, res.Reason), b.sampleLimit)
		}
	}

	if report.Failed > 0 {
		log.Printf("Bulk apply finished: %d submitted, %d succeeded, %d failed (first %d reasons kept, %d suppressed)",
			report.Submitted, report.Succeeded, report.Failed, len(report.FailureSamples), report.Suppressed)
	}

	return report, nil
}
