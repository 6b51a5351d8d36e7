package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davidschrooten/catalog-search-sync/internal/bulk"
	"github.com/davidschrooten/catalog-search-sync/internal/search"
	"github.com/davidschrooten/catalog-search-sync/internal/sqlstore"
)

type fakeCatalog struct {
	products   []sqlstore.Product
	productErr error
	changes    []sqlstore.ProductChange
	changesErr error
	byID       map[int64]*sqlstore.Product
	byIDErr    error

	detailFetches []int64
}

func (f *fakeCatalog) FetchActiveProducts(ctx context.Context) ([]sqlstore.Product, error) {
	return f.products, f.productErr
}

func (f *fakeCatalog) FetchChangesSince(ctx context.Context, since time.Time) ([]sqlstore.ProductChange, error) {
	return f.changes, f.changesErr
}

func (f *fakeCatalog) FetchProductByID(ctx context.Context, id int64) (*sqlstore.Product, error) {
	f.detailFetches = append(f.detailFetches, id)
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byID[id], nil
}

type fakeIndex struct {
	ensureErr error
	ensured   int
	upserts   []string
	upsertErr map[string]error
	deletes   []string
	deleteErr map[string]error
}

func (f *fakeIndex) EnsureIndex(ctx context.Context) error {
	f.ensured++
	return f.ensureErr
}

func (f *fakeIndex) UpsertDocument(ctx context.Context, doc search.Document) error {
	f.upserts = append(f.upserts, doc.ID)
	return f.upsertErr[doc.ID]
}

func (f *fakeIndex) DeleteDocument(ctx context.Context, id string) error {
	f.deletes = append(f.deletes, id)
	return f.deleteErr[id]
}

type fakeBatcher struct {
	applied [][]search.Document
	report  *bulk.Report
	err     error
}

func (f *fakeBatcher) Apply(ctx context.Context, docs []search.Document) (*bulk.Report, error) {
	f.applied = append(f.applied, docs)
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &bulk.Report{Submitted: len(docs), Succeeded: len(docs)}, nil
}

type fakeWatermarks struct {
	value    time.Time
	writes   []time.Time
	kinds    []string
	writeErr error
}

func (f *fakeWatermarks) Read(ctx context.Context) time.Time {
	return f.value
}

func (f *fakeWatermarks) Write(ctx context.Context, ts time.Time, syncType string) error {
	f.writes = append(f.writes, ts)
	f.kinds = append(f.kinds, syncType)
	return f.writeErr
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestService(catalog *fakeCatalog, index *fakeIndex, batcher *fakeBatcher, wm *fakeWatermarks) *Service {
	svc := NewService(catalog, index, batcher, wm, 5)
	svc.now = fixedNow
	return svc
}

func TestIncrementalSyncEmptyChangeSetAdvancesWatermark(t *testing.T) {
	catalog := &fakeCatalog{}
	index := &fakeIndex{}
	wm := &fakeWatermarks{value: fixedNow().Add(-time.Hour)}
	svc := newTestService(catalog, index, &fakeBatcher{}, wm)

	report, err := svc.IncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("IncrementalSync failed: %v", err)
	}

	if len(wm.writes) != 1 {
		t.Fatalf("Expected 1 watermark write, got %d", len(wm.writes))
	}
	if !wm.writes[0].Equal(fixedNow()) {
		t.Errorf("Expected watermark advanced to run start %v, got %v", fixedNow(), wm.writes[0])
	}
	if wm.kinds[0] != "incremental" {
		t.Errorf("Expected syncType 'incremental', got '%s'", wm.kinds[0])
	}
	if len(index.upserts) != 0 {
		t.Errorf("Expected 0 upserts, got %d", len(index.upserts))
	}
	if report.Submitted != 0 {
		t.Errorf("Expected 0 submitted, got %d", report.Submitted)
	}
}

func TestIncrementalSyncDeletesWithoutDetailFetch(t *testing.T) {
	catalog := &fakeCatalog{
		changes: []sqlstore.ProductChange{
			{ID: 7, UpdatedAt: fixedNow().Add(-time.Minute), IsDeleted: true},
		},
	}
	index := &fakeIndex{}
	wm := &fakeWatermarks{value: fixedNow().Add(-time.Hour)}
	svc := newTestService(catalog, index, &fakeBatcher{}, wm)

	report, err := svc.IncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("IncrementalSync failed: %v", err)
	}

	if len(index.deletes) != 1 || index.deletes[0] != "7" {
		t.Errorf("Expected exactly one delete for '7', got %v", index.deletes)
	}
	if len(catalog.detailFetches) != 0 {
		t.Errorf("Expected 0 detail fetches for a deleted record, got %d", len(catalog.detailFetches))
	}
	if len(index.upserts) != 0 {
		t.Errorf("Expected 0 upserts for a deleted record, got %d", len(index.upserts))
	}
	if report.Deleted != 1 {
		t.Errorf("Expected 1 deleted in report, got %d", report.Deleted)
	}
}

func TestIncrementalSyncHydratesAndUpserts(t *testing.T) {
	catalog := &fakeCatalog{
		changes: []sqlstore.ProductChange{
			{ID: 3, UpdatedAt: fixedNow().Add(-time.Minute)},
		},
		byID: map[int64]*sqlstore.Product{
			3: {ID: 3, Name: "Dell XPS 15", Tags: "laptop,dell", IsActive: true},
		},
	}
	index := &fakeIndex{}
	wm := &fakeWatermarks{value: fixedNow().Add(-time.Hour)}
	svc := newTestService(catalog, index, &fakeBatcher{}, wm)

	report, err := svc.IncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("IncrementalSync failed: %v", err)
	}

	if len(catalog.detailFetches) != 1 || catalog.detailFetches[0] != 3 {
		t.Errorf("Expected one detail fetch for id 3, got %v", catalog.detailFetches)
	}
	if len(index.upserts) != 1 || index.upserts[0] != "3" {
		t.Errorf("Expected one upsert for '3', got %v", index.upserts)
	}
	if report.Succeeded != 1 {
		t.Errorf("Expected 1 succeeded, got %d", report.Succeeded)
	}
}

func TestIncrementalSyncContinuesPastItemFailures(t *testing.T) {
	catalog := &fakeCatalog{
		changes: []sqlstore.ProductChange{
			{ID: 1},
			{ID: 2, IsDeleted: true},
			{ID: 3},
		},
		byID: map[int64]*sqlstore.Product{
			1: {ID: 1, Name: "one"},
			3: {ID: 3, Name: "three"},
		},
	}
	index := &fakeIndex{
		upsertErr: map[string]error{"1": errors.New("mapping rejected")},
		deleteErr: map[string]error{"2": errors.New("cluster unreachable")},
	}
	wm := &fakeWatermarks{value: fixedNow().Add(-time.Hour)}
	svc := newTestService(catalog, index, &fakeBatcher{}, wm)

	report, err := svc.IncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("IncrementalSync should not fail on per-item errors: %v", err)
	}

	if report.Submitted != 3 {
		t.Errorf("Expected 3 submitted, got %d", report.Submitted)
	}
	if report.Failed != 2 {
		t.Errorf("Expected 2 failed, got %d", report.Failed)
	}
	if report.Succeeded != 1 {
		t.Errorf("Expected 1 succeeded, got %d", report.Succeeded)
	}
	// Watermark still advances: liveness over per-record delivery
	if len(wm.writes) != 1 || !wm.writes[0].Equal(fixedNow()) {
		t.Errorf("Expected watermark advanced to run start despite failures, got %v", wm.writes)
	}
}

func TestIncrementalSyncVanishedRowCountsAsFailure(t *testing.T) {
	catalog := &fakeCatalog{
		changes: []sqlstore.ProductChange{{ID: 9}},
		byID:    map[int64]*sqlstore.Product{},
	}
	index := &fakeIndex{}
	wm := &fakeWatermarks{value: fixedNow().Add(-time.Hour)}
	svc := newTestService(catalog, index, &fakeBatcher{}, wm)

	report, err := svc.IncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("IncrementalSync failed: %v", err)
	}

	if len(index.upserts) != 0 {
		t.Errorf("Expected no upsert for vanished row, got %v", index.upserts)
	}
	if report.Failed != 1 {
		t.Errorf("Expected 1 failure for vanished row, got %d", report.Failed)
	}
}

func TestIncrementalSyncFatalOnChangeQueryError(t *testing.T) {
	catalog := &fakeCatalog{changesErr: errors.New("connection refused")}
	wm := &fakeWatermarks{value: fixedNow().Add(-time.Hour)}
	svc := newTestService(catalog, &fakeIndex{}, &fakeBatcher{}, wm)

	if _, err := svc.IncrementalSync(context.Background()); err == nil {
		t.Fatal("Expected error when change query fails")
	}
	if len(wm.writes) != 0 {
		t.Errorf("Expected no watermark write after fatal error, got %d", len(wm.writes))
	}
}

func TestFullSyncMapsAndSubmitsAllActives(t *testing.T) {
	catalog := &fakeCatalog{
		products: []sqlstore.Product{
			{ID: 1, Name: "one", Tags: "a,b"},
			{ID: 2, Name: "two"},
		},
	}
	index := &fakeIndex{}
	batcher := &fakeBatcher{}
	wm := &fakeWatermarks{}
	svc := newTestService(catalog, index, batcher, wm)

	report, err := svc.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}

	if index.ensured != 1 {
		t.Errorf("Expected EnsureIndex to be called once, got %d", index.ensured)
	}
	if len(batcher.applied) != 1 {
		t.Fatalf("Expected one batched apply, got %d", len(batcher.applied))
	}
	docs := batcher.applied[0]
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "1" || docs[1].ID != "2" {
		t.Errorf("Expected document ids [1 2], got [%s %s]", docs[0].ID, docs[1].ID)
	}
	if report.Submitted != 2 || report.Succeeded != 2 {
		t.Errorf("Expected 2 submitted and succeeded, got %d/%d", report.Submitted, report.Succeeded)
	}

	// Courtesy watermark refresh
	if len(wm.writes) != 1 || wm.kinds[0] != "full" {
		t.Errorf("Expected one 'full' watermark write, got %v %v", wm.writes, wm.kinds)
	}
}

func TestFullSyncEmptyCatalogSkipsBulk(t *testing.T) {
	catalog := &fakeCatalog{}
	batcher := &fakeBatcher{}
	svc := newTestService(catalog, &fakeIndex{}, batcher, &fakeWatermarks{})

	if _, err := svc.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if len(batcher.applied) != 0 {
		t.Errorf("Expected no bulk apply for empty catalog, got %d", len(batcher.applied))
	}
}

func TestFullSyncPartialBulkFailureIsNotFatal(t *testing.T) {
	catalog := &fakeCatalog{products: []sqlstore.Product{{ID: 1}, {ID: 2}}}
	batcher := &fakeBatcher{report: &bulk.Report{Submitted: 2, Succeeded: 1, Failed: 1, FailureSamples: []string{"document 2: status 409"}}}
	svc := newTestService(catalog, &fakeIndex{}, batcher, &fakeWatermarks{})

	report, err := svc.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync should tolerate partial bulk failures: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("Expected 1 failure reported, got %d", report.Failed)
	}
}

func TestFullSyncFatalOnReadError(t *testing.T) {
	catalog := &fakeCatalog{productErr: errors.New("connection refused")}
	svc := newTestService(catalog, &fakeIndex{}, &fakeBatcher{}, &fakeWatermarks{})

	if _, err := svc.FullSync(context.Background()); err == nil {
		t.Fatal("Expected error when catalog read fails")
	}
}

func TestFullSyncFatalOnIndexCreationError(t *testing.T) {
	index := &fakeIndex{ensureErr: errors.New("forbidden")}
	svc := newTestService(&fakeCatalog{}, index, &fakeBatcher{}, &fakeWatermarks{})

	if _, err := svc.FullSync(context.Background()); err == nil {
		t.Fatal("Expected error when index creation fails")
	}
}

func TestWatermarkMonotonicAcrossRuns(t *testing.T) {
	catalog := &fakeCatalog{}
	wm := &fakeWatermarks{value: fixedNow().Add(-time.Hour)}
	svc := newTestService(catalog, &fakeIndex{}, &fakeBatcher{}, wm)

	times := []time.Time{
		fixedNow(),
		fixedNow().Add(5 * time.Minute),
		fixedNow().Add(10 * time.Minute),
	}
	i := 0
	svc.now = func() time.Time {
		return times[i]
	}

	for ; i < len(times); i++ {
		if _, err := svc.IncrementalSync(context.Background()); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}

	if len(wm.writes) != 3 {
		t.Fatalf("Expected 3 watermark writes, got %d", len(wm.writes))
	}
	for j := 1; j < len(wm.writes); j++ {
		if wm.writes[j].Before(wm.writes[j-1]) {
			t.Errorf("Watermark regressed: %v after %v", wm.writes[j], wm.writes[j-1])
		}
	}
}

func TestLastReports(t *testing.T) {
	catalog := &fakeCatalog{}
	svc := newTestService(catalog, &fakeIndex{}, &fakeBatcher{}, &fakeWatermarks{})

	if len(svc.LastReports()) != 0 {
		t.Error("Expected no reports before any run")
	}

	if _, err := svc.IncrementalSync(context.Background()); err != nil {
		t.Fatalf("IncrementalSync failed: %v", err)
	}

	reports := svc.LastReports()
	if len(reports) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(reports))
	}
	if reports["incremental"] == nil {
		t.Fatal("Expected an 'incremental' report")
	}
	if reports["incremental"].Kind != "incremental" {
		t.Errorf("Expected report kind 'incremental', got '%s'", reports["incremental"].Kind)
	}
}
