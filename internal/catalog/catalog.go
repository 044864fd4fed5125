// Package catalog stores the products the recommender ranks.
package catalog

import (
	"context"
	"errors"
	"slices"
)

var (
	ErrNotFound       = errors.New("catalog: product not found")
	ErrInvalidProduct = errors.New("catalog: product id and name are required")
	ErrStoreFailure   = errors.New("catalog: store operation failed")
)

// Product is a sellable item.
type Product struct {
	ID       string   `json:"id" bson:"_id"`
	Name     string   `json:"name" bson:"name"`
	Category string   `json:"category" bson:"category"`
	Price    float64  `json:"price" bson:"price"`
	Tags     []string `json:"tags" bson:"tags"`
	Stock    int      `json:"stock" bson:"stock"`
	ImageURL string   `json:"imageUrl" bson:"image_url"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// HasTag reports whether the product carries tag.
func (p Product) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

func (p Product) validate() error {
	if p.ID == "" || p.Name == "" || p.Price < 0 || p.Stock < 0 {
		return ErrInvalidProduct
	}
	return nil
}

// Repository reads and writes products.
type Repository interface {
	Get(ctx context.Context, id string) (Product, error)
	// List returns all products ordered by id.
	List(ctx context.Context) ([]Product, error)
	Upsert(ctx context.Context, p Product) error
	Count(ctx context.Context) (int, error)
}

// Seed writes products when the repository is empty and reports how many
// were written.
func Seed(ctx context.Context, repo Repository, products []Product) (int, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}
