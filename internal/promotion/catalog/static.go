package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"promotions/internal/promotion/models"
)

// Static serves products from a fixed catalog. It backs local runs without a
// catalog service and tests.
type Static struct {
	products models.Catalog
}

func NewStatic(products ...models.Product) *Static {
	s := &Static{products: make(models.Catalog, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Static) Products(_ context.Context, productIDs []string) (models.Catalog, error) {
	out := make(models.Catalog, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// staticFile is the products section of a seed file:
//
//	products:
//	  - id: "0001"
//	    title: Shirt
//	    categories: ["010101"]
//	    categoryPaths: {"010101": ["01", "0101"]}
type staticFile struct {
	Products []struct {
		ID            string              `yaml:"id"`
		Title         string              `yaml:"title"`
		Categories    []string            `yaml:"categories"`
		CategoryPaths map[string][]string `yaml:"categoryPaths"`
	} `yaml:"products"`
}

// LoadStaticFile builds a Static catalog from the products section of a YAML file.
func LoadStaticFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open product file: %w", err)
	}
	defer f.Close()
	return LoadStatic(f)
}

func LoadStatic(r io.Reader) (*Static, error) {
	var doc staticFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode product file: %w", err)
	}
	products := make([]models.Product, 0, len(doc.Products))
	for i, p := range doc.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("product %d: id is required", i)
		}
		products = append(products, models.Product{
			ID:            p.ID,
			Title:         p.Title,
			Categories:    p.Categories,
			CategoryPaths: p.CategoryPaths,
		})
	}
	return NewStatic(products...), nil
}
