package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// fakeMetadataClient serves scripted documents and records writes
type fakeMetadataClient struct {
	doc        json.RawMessage
	found      bool
	getErr     error
	putErr     error
	ensureErr  error
	ensuredIdx []string
	putIndex   string
	putID      string
	putBody    any
	putCount   int
}

func (f *fakeMetadataClient) GetDocument(ctx context.Context, index, id string) (json.RawMessage, bool, error) {
	return f.doc, f.found, f.getErr
}

func (f *fakeMetadataClient) PutDocument(ctx context.Context, index, id string, body any) error {
	f.putIndex = index
	f.putID = id
	f.putBody = body
	f.putCount++
	return f.putErr
}

func (f *fakeMetadataClient) EnsureBareIndex(ctx context.Context, index string) error {
	f.ensuredIdx = append(f.ensuredIdx, index)
	return f.ensureErr
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestStore(client *fakeMetadataClient) *Store {
	store := NewStore(client, "sync_metadata", 24*time.Hour)
	store.now = fixedNow
	return store
}

func TestReadReturnsStoredWatermark(t *testing.T) {
	stored := time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC)
	raw, _ := json.Marshal(Record{ID: DocumentID, LastSync: stored, SyncType: "incremental"})

	store := newTestStore(&fakeMetadataClient{doc: raw, found: true})

	got := store.Read(context.Background())
	if !got.Equal(stored) {
		t.Errorf("Expected watermark %v, got %v", stored, got)
	}
}

func TestReadDefaultsWhenMissing(t *testing.T) {
	store := newTestStore(&fakeMetadataClient{found: false})

	got := store.Read(context.Background())
	expected := fixedNow().Add(-24 * time.Hour)
	if !got.Equal(expected) {
		t.Errorf("Expected default watermark %v, got %v", expected, got)
	}
}

func TestReadMasksErrors(t *testing.T) {
	store := newTestStore(&fakeMetadataClient{getErr: errors.New("cluster unreachable")})

	got := store.Read(context.Background())
	expected := fixedNow().Add(-24 * time.Hour)
	if !got.Equal(expected) {
		t.Errorf("Expected default watermark %v on read error, got %v", expected, got)
	}
}

func TestReadDefaultsOnBadPayload(t *testing.T) {
	store := newTestStore(&fakeMetadataClient{doc: json.RawMessage(`{not json`), found: true})

	got := store.Read(context.Background())
	expected := fixedNow().Add(-24 * time.Hour)
	if !got.Equal(expected) {
		t.Errorf("Expected default watermark %v on bad payload, got %v", expected, got)
	}
}

func TestWriteCreatesIndexAndDocument(t *testing.T) {
	client := &fakeMetadataClient{}
	store := newTestStore(client)

	ts := time.Date(2024, 6, 1, 11, 55, 0, 0, time.UTC)
	if err := store.Write(context.Background(), ts, "incremental"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if len(client.ensuredIdx) != 1 || client.ensuredIdx[0] != "sync_metadata" {
		t.Errorf("Expected metadata index to be ensured, got %v", client.ensuredIdx)
	}
	if client.putIndex != "sync_metadata" {
		t.Errorf("Expected put into 'sync_metadata', got '%s'", client.putIndex)
	}
	if client.putID != DocumentID {
		t.Errorf("Expected document id '%s', got '%s'", DocumentID, client.putID)
	}

	rec, ok := client.putBody.(Record)
	if !ok {
		t.Fatalf("Expected Record body, got %T", client.putBody)
	}
	if !rec.LastSync.Equal(ts) {
		t.Errorf("Expected lastSync %v, got %v", ts, rec.LastSync)
	}
	if rec.SyncType != "incremental" {
		t.Errorf("Expected syncType 'incremental', got '%s'", rec.SyncType)
	}
}

func TestWritePropagatesErrors(t *testing.T) {
	store := newTestStore(&fakeMetadataClient{ensureErr: errors.New("no permission")})

	if err := store.Write(context.Background(), fixedNow(), "full"); err == nil {
		t.Error("Expected error when index creation fails")
	}
}
