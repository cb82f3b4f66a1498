package products

import (
	"fmt"

	"switchboard/store"
)

// Product is a stored product record.
type Product struct {
	ID          string  `json:"_id,omitempty"`
	Name        string  `json:"name"`
	Code        string  `json:"code,omitempty"`
	Type        string  `json:"type,omitempty"`
	Description string  `json:"description,omitempty"`
	UnitPrice   float64 `json:"unitPrice,omitempty"`
}

// Models is the products plugin's tenant-bound model set.
type Models struct {
	Products *Products
}

// NewModels binds the products models to one tenant's data connection.
func NewModels(conn *store.Conn, subdomain string) *Models {
	return &Models{
		Products: &Products{col: conn.Collection("products")},
	}
}

// Products provides product-level operations.
type Products struct {
	col *store.Collection
}

// CreateProduct stores a new product.
func (p *Products) CreateProduct(product Product) (Product, error) {
	if product.Name == "" {
		return Product{}, fmt.Errorf("product name is required")
	}

	product.ID = ""
	doc, err := store.ToDocument(product)
	if err != nil {
		return Product{}, err
	}
	product.ID = p.col.Insert(doc)
	return product, nil
}

// Find returns all products matching the query document.
func (p *Products) Find(query store.Document) ([]Product, error) {
	docs := p.col.Find(query)

	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		var product Product
		if err := store.FromDocument(doc, &product); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

// FindOne returns the first product matching the query document.
func (p *Products) FindOne(query store.Document) (Product, error) {
	doc, ok := p.col.FindOne(query)
	if !ok {
		return Product{}, fmt.Errorf("product not found")
	}

	var product Product
	if err := store.FromDocument(doc, &product); err != nil {
		return Product{}, err
	}
	return product, nil
}
