// Package forms hosts the form builder service: form definitions,
// field schemas, submissions and validation, served per tenant over
// the message transport.
package forms

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"switchboard/cmd"
	"switchboard/plugin"
	"switchboard/registry"
	"switchboard/router"
	"switchboard/store"
	"switchboard/transport"
)

// init registers the forms plugin and its admin commands
func init() {
	p := NewFormsPlugin()
	plugin.Register(p)

	cmd.RegisterFor("forms", &plugin.Command{
		Name:        "forms-tenants",
		Description: "List tenants with cached forms models",
		Usage:       "forms-tenants",
		Handler:     p.handleTenantsCommand,
	})
	cmd.RegisterFor("forms", &plugin.Command{
		Name:        "forms-reset",
		Description: "Drop a tenant's cached forms models",
		Usage:       "forms-reset <subdomain>",
		Handler:     p.handleResetCommand,
	})
}

// FormsPlugin serves the forms actions
type FormsPlugin struct {
	mu       sync.Mutex
	store    *store.Store
	registry *registry.Registry[*store.Conn, *Models]
	router   *router.Router[*Models]
	client   *transport.Client
}

// NewFormsPlugin creates a new forms plugin
func NewFormsPlugin() *FormsPlugin {
	return &FormsPlugin{
		store: store.New(),
	}
}

// Name returns the plugin name
func (p *FormsPlugin) Name() string {
	return "forms"
}

// CheckRequirements validates plugin requirements
func (p *FormsPlugin) CheckRequirements(ctx context.Context) error {
	// The forms store is in-process, nothing external to check
	return nil
}

// Extensions returns the plugin's extensions
func (p *FormsPlugin) Extensions() []plugin.Extension {
	return []plugin.Extension{
		plugin.NewServiceExtension("forms", func() []string {
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
func (p *FormsPlugin) Start(ctx context.Context, client *transport.Client) error {
	reg := registry.New(p.store.Connect, NewModels)

	r, err := InitBroker(client, reg)
	if err != nil {
		return fmt.Errorf("forms: broker init failed: %w", err)
	}

	p.mu.Lock()
	p.registry = reg
	p.router = r
	p.client = client
	p.mu.Unlock()

	log.Printf("[Forms] Started with %d action(s)", len(r.Actions()))
	return nil
}

// Stop gracefully shuts down the plugin
func (p *FormsPlugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.registry != nil {
		for _, tenant := range p.registry.Tenants() {
			p.registry.Reset(tenant)
		}
	}
	p.store.Close()

	log.Printf("[Forms] Stopped")
	return nil
}

func (p *FormsPlugin) handleTenantsCommand(ctx context.Context, args []string) (*plugin.CommandResult, error) {
	p.mu.Lock()
	reg := p.registry
	p.mu.Unlock()

	if reg == nil {
		return &plugin.CommandResult{Output: "Forms plugin not started"}, nil
	}

	tenants := reg.Tenants()
	if len(tenants) == 0 {
		return &plugin.CommandResult{Output: "No tenants cached"}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Cached tenants (%d):\n", len(tenants)))
	for _, tenant := range tenants {
		sb.WriteString(fmt.Sprintf("  %s\n", tenant))
	}

	return &plugin.CommandResult{Output: sb.String(), Data: tenants}, nil
}

func (p *FormsPlugin) handleResetCommand(ctx context.Context, args []string) (*plugin.CommandResult, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: forms-reset <subdomain>")
	}

	p.mu.Lock()
	reg := p.registry
	p.mu.Unlock()

	if reg == nil {
		return &plugin.CommandResult{Output: "Forms plugin not started"}, nil
	}

	reg.Reset(args[0])
	return &plugin.CommandResult{Output: fmt.Sprintf("Reset tenant: %s", args[0])}, nil
}
