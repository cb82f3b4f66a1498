package products

import (
	"context"
	"testing"

	"switchboard/store"
)

func newTestModels(t *testing.T) *Models {
	t.Helper()

	s := store.New()
	t.Cleanup(s.Close)

	conn, err := s.Connect(context.Background(), "acme")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return NewModels(conn, "acme")
}

func TestCreateProduct(t *testing.T) {
	m := newTestModels(t)

	created, err := m.Products.CreateProduct(Product{Name: "Widget", Code: "W1", UnitPrice: 9.5})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created product has no id")
	}

	found, err := m.Products.FindOne(store.Document{"code": "W1"})
	if err != nil {
		t.Fatalf("find one failed: %v", err)
	}
	if found.Name != "Widget" || found.UnitPrice != 9.5 {
		t.Errorf("found = %+v", found)
	}
}

func TestCreateProductRequiresName(t *testing.T) {
	m := newTestModels(t)

	if _, err := m.Products.CreateProduct(Product{Code: "W1"}); err == nil {
		t.Error("nameless product accepted")
	}
}

func TestFindProducts(t *testing.T) {
	m := newTestModels(t)

	for _, p := range []Product{
		{Name: "Widget", Type: "product"},
		{Name: "Gadget", Type: "product"},
		{Name: "Support", Type: "service"},
	} {
		if _, err := m.Products.CreateProduct(p); err != nil {
			t.Fatalf("create %s failed: %v", p.Name, err)
		}
	}

	goods, err := m.Products.Find(store.Document{"type": "product"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(goods) != 2 {
		t.Errorf("found %d product(s), want 2", len(goods))
	}

	if _, err := m.Products.FindOne(store.Document{"name": "Missing"}); err == nil {
		t.Error("find of missing product succeeded")
	}
}
