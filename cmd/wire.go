package cmd

import (
	"fmt"

	"github.com/davidschrooten/catalog-search-sync/config"
	"github.com/davidschrooten/catalog-search-sync/internal/bulk"
	"github.com/davidschrooten/catalog-search-sync/internal/search"
	"github.com/davidschrooten/catalog-search-sync/internal/sqlstore"
	"github.com/davidschrooten/catalog-search-sync/internal/syncer"
	"github.com/davidschrooten/catalog-search-sync/internal/watermark"
)

// services bundles the wired collaborators of one process
type services struct {
	store      *sqlstore.Store
	syncer     *syncer.Service
	watermarks *watermark.Store
}

// Close releases the relational connection
func (s *services) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

// buildServices wires the synchronizer from configuration
func buildServices(cfg *config.Config) (*services, error) {
	store, err := sqlstore.NewStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	searchClient, err := search.NewClient(cfg.Elasticsearch)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize search client: %w", err)
	}

	batcher := bulk.NewBatcher(searchClient, cfg.Sync.BatchSize, cfg.Sync.BatchPause(), cfg.Sync.FailureSampleSize)
	watermarks := watermark.NewStore(searchClient, cfg.Elasticsearch.MetadataIndex, cfg.Sync.Lookback())
	syncService := syncer.NewService(store, searchClient, batcher, watermarks, cfg.Sync.FailureSampleSize)

	return &services{
		store:      store,
		syncer:     syncService,
		watermarks: watermarks,
	}, nil
}
