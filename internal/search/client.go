package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olivere/elastic/v7"

	"github.com/davidschrooten/catalog-search-sync/config"
)

// defaultMapping is applied when the products index is created
const defaultMapping = `{
	"mappings": {
		"properties": {
			"id":          {"type": "keyword"},
			"name":        {"type": "text"},
			"description": {"type": "text"},
			"price":       {"type": "double"},
			"stock":       {"type": "integer"},
			"category":    {"type": "keyword"},
			"tags":        {"type": "keyword"},
			"createdDate": {"type": "date"},
			"isActive":    {"type": "boolean"},
			"specifications": {
				"properties": {
					"brand": {"type": "keyword"},
					"model": {"type": "keyword"}
				}
			}
		}
	}
}`

// ItemResult is the per-document outcome of a bulk request
type ItemResult struct {
	ID     string
	Status int
	Reason string
}

// OK reports whether the item landed in the success range
func (r ItemResult) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Client wraps the Elasticsearch client for the product index
type Client struct {
	es    *elastic.Client
	index string
}

// NewClient connects to the search cluster
func NewClient(cfg config.ElasticsearchConfig) (*Client, error) {
	es, err := elastic.NewClient(
		elastic.SetURL(cfg.URI),
		elastic.SetSniff(cfg.Sniff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	return &Client{
		es:    es,
		index: cfg.Index,
	}, nil
}

// EnsureIndex creates the product index with its default mapping if absent
func (c *Client) EnsureIndex(ctx context.Context) error {
	exists, err := c.es.IndexExists(c.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", c.index, err)
	}
	if exists {
		return nil
	}

	if _, err := c.es.CreateIndex(c.index).BodyString(defaultMapping).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", c.index, err)
	}
	return nil
}

// UpsertDocument writes a single document by id, overwriting any previous version
func (c *Client) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := c.es.Index().Index(c.index).Id(doc.ID).BodyJson(doc).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument removes a document by id. A missing document is not an error.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	_, err := c.es.Delete().Index(c.index).Id(id).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// BulkUpsert submits one bulk request for the given documents and returns
// the per-item outcomes. A transport-level failure returns an error and no results.
func (c *Client) BulkUpsert(ctx context.Context, docs []Document) ([]ItemResult, error) {
	bulk := c.es.Bulk().Index(c.index)
	for _, doc := range docs {
		bulk.Add(elastic.NewBulkIndexRequest().Id(doc.ID).Doc(doc))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulk request failed: %w", err)
	}

	return classifyBulkResponse(resp), nil
}

// classifyBulkResponse reads per-item statuses from a bulk response. The
// aggregate Errors flag is ignored on purpose: the item status is the contract.
func classifyBulkResponse(resp *elastic.BulkResponse) []ItemResult {
	results := make([]ItemResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		for _, r := range item {
			res := ItemResult{ID: r.Id, Status: r.Status}
			if r.Error != nil {
				res.Reason = r.Error.Reason
			}
			results = append(results, res)
		}
	}
	return results
}

// GetDocument fetches a raw document from any index of the cluster.
// The second return value reports whether the document was found.
func (c *Client) GetDocument(ctx context.Context, index, id string) (json.RawMessage, bool, error) {
	resp, err := c.es.Get().Index(index).Id(id).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get document %s/%s: %w", index, id, err)
	}
	if !resp.Found {
		return nil, false, nil
	}
	return resp.Source, true, nil
}

// PutDocument upserts a raw document into any index of the cluster
func (c *Client) PutDocument(ctx context.Context, index, id string, body any) error {
	_, err := c.es.Index().Index(index).Id(id).BodyJson(body).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to put document %s/%s: %w", index, id, err)
	}
	return nil
}

// EnsureBareIndex creates an index with default settings if absent
func (c *Client) EnsureBareIndex(ctx context.Context, index string) error {
	exists, err := c.es.IndexExists(index).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", index, err)
	}
	if exists {
		return nil
	}
	if _, err := c.es.CreateIndex(index).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	return nil
}
