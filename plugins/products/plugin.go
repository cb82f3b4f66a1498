// Package products hosts the product catalog service. It is the
// canonical peer of the forms service: forms reaches it over the
// transport for product lookups and field schemas.
package products

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"switchboard/plugin"
	"switchboard/registry"
	"switchboard/router"
	"switchboard/store"
	"switchboard/transport"
)

// init registers the products plugin
func init() {
	plugin.Register(NewProductsPlugin())
}

// ProductsPlugin serves the products actions
type ProductsPlugin struct {
	mu       sync.Mutex
	store    *store.Store
	registry *registry.Registry[*store.Conn, *Models]
	router   *router.Router[*Models]
}

// NewProductsPlugin creates a new products plugin
func NewProductsPlugin() *ProductsPlugin {
	return &ProductsPlugin{
		store: store.New(),
	}
}

// Name returns the plugin name
func (p *ProductsPlugin) Name() string {
	return "products"
}

// CheckRequirements validates plugin requirements
func (p *ProductsPlugin) CheckRequirements(ctx context.Context) error {
	return nil
}

// Extensions returns the plugin's extensions
func (p *ProductsPlugin) Extensions() []plugin.Extension {
	return []plugin.Extension{
		plugin.NewServiceExtension("products", func() []string {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.router == nil {
				return nil
			}
			return p.router.Actions()
		}),
	}
}

// Start binds the tenant registry and attaches the action table
func (p *ProductsPlugin) Start(ctx context.Context, client *transport.Client) error {
	reg := registry.New(p.store.Connect, NewModels)

	r := router.New[*Models]("products", reg)
	rpcActions := map[string]router.HandlerFunc[*Models]{
		"find":           handleFind,
		"findOne":        handleFindOne,
		"createProduct":  handleCreateProduct,
		"fields.getList": handleFieldsGetList,
	}
	for operation, fn := range rpcActions {
		if err := r.RegisterRPC(operation, fn); err != nil {
			return fmt.Errorf("products: %w", err)
		}
	}
	if err := r.Attach(client); err != nil {
		return fmt.Errorf("products: %w", err)
	}

	p.mu.Lock()
	p.registry = reg
	p.router = r
	p.mu.Unlock()

	log.Printf("[Products] Started with %d action(s)", len(r.Actions()))
	return nil
}

// Stop gracefully shuts down the plugin
func (p *ProductsPlugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.registry != nil {
		for _, tenant := range p.registry.Tenants() {
			p.registry.Reset(tenant)
		}
	}
	p.store.Close()

	log.Printf("[Products] Stopped")
	return nil
}

func handleFind(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	query, err := decodeQuery(data)
	if err != nil {
		return nil, err
	}
	return models.Products.Find(query)
}

func handleFindOne(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	query, err := decodeQuery(data)
	if err != nil {
		return nil, err
	}
	return models.Products.FindOne(query)
}

func handleCreateProduct(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	var product Product
	if err := transport.Decode(data, &product); err != nil {
		return nil, err
	}
	return models.Products.CreateProduct(product)
}

// handleFieldsGetList reports the field schema other services attach
// to product content types. The schema is static; products have a
// fixed shape.
func handleFieldsGetList(ctx context.Context, subdomain string, models *Models, data json.RawMessage) (interface{}, error) {
	return []map[string]interface{}{
		{"_id": "product-name", "contentType": "products:product", "text": "Name", "type": "input", "isRequired": true},
		{"_id": "product-code", "contentType": "products:product", "text": "Code", "type": "input"},
		{"_id": "product-unitPrice", "contentType": "products:product", "text": "Unit price", "type": "input", "validation": "number"},
	}, nil
}

func decodeQuery(data json.RawMessage) (store.Document, error) {
	query := store.Document{}
	if len(data) == 0 {
		return query, nil
	}
	if err := transport.Decode(data, &query); err != nil {
		return nil, err
	}
	return query, nil
}
