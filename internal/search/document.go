package search

import (
	"strconv"
	"strings"
	"time"

	"github.com/davidschrooten/catalog-search-sync/internal/sqlstore"
)

// Document is the product projection stored in the search index.
// Its ID is the string form of the source row id, which makes every
// upsert an overwrite of the same document.
type Document struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          float64   `json:"price"`
	Stock          int       `json:"stock"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	CreatedDate    time.Time `json:"createdDate"`
	IsActive       bool      `json:"isActive"`
	Specifications Specs     `json:"specifications"`
}

// Specs is the nested specification block
type Specs struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
}

// MapProduct converts a product row into its search document shape
func MapProduct(p sqlstore.Product) Document {
	return Document{
		ID:          strconv.FormatInt(p.ID, 10),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
		Tags:        splitTags(p.Tags),
		CreatedDate: p.CreatedAt,
		IsActive:    p.IsActive,
		Specifications: Specs{
			Brand: p.Brand,
			Model: p.Model,
		},
	}
}

func splitTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
