package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"switchboard/internal/config"
	"switchboard/plugin"
	"switchboard/transport"

	"golang.org/x/sync/errgroup"
)

// State represents the daemon's current state
type State string

const (
	// StateIdle indicates the daemon has not been started yet
	StateIdle State = "idle"
	// StateRunning indicates the daemon is serving plugins
	StateRunning State = "running"
	// StateStopped indicates the daemon has been stopped
	StateStopped State = "stopped"

	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Daemon is the composition root: it owns the message broker, hands
// each plugin its own transport client, and drives plugin lifecycle.
type Daemon struct {
	mu      sync.RWMutex
	state   State
	config  *config.Config
	broker  *transport.Broker
	stopped atomic.Bool
	clients map[string]*transport.Client
	plugins map[string]plugin.Plugin
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new daemon instance
func New(cfg *config.Config) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		state:  StateIdle,
		config: cfg,
		broker: transport.NewBroker(transport.BrokerOptions{
			QueueBuffer:     cfg.Broker.QueueBufferSize,
			PublishTimeout:  time.Duration(cfg.Broker.PublishTimeout) * time.Second,
			RedeliveryLimit: cfg.Broker.RedeliveryLimit,
		}),
		clients: make(map[string]*transport.Client),
		plugins: make(map[string]plugin.Plugin),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddPlugin adds a plugin to the daemon
func (d *Daemon) AddPlugin(p plugin.Plugin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := p.Name()

	// Check if plugin is enabled in config
	if !d.config.IsPluginEnabled(name) {
		log.Printf("[Daemon] Plugin %s is disabled in config, skipping", name)
		return nil
	}

	if _, exists := d.plugins[name]; exists {
		return fmt.Errorf("plugin %s already added", name)
	}

	d.plugins[name] = p
	log.Printf("[Daemon] Added plugin: %s", name)

	return nil
}

// Start starts the daemon and all registered plugins. Each plugin gets
// its own transport client connected to the shared broker, mirroring
// how independently deployed services would each hold a broker
// connection.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateIdle {
		return fmt.Errorf("daemon already started")
	}

	log.Println("[Daemon] Starting daemon...")

	ctx := context.WithValue(d.ctx, "mode", d.config.Mode)
	ctx = context.WithValue(ctx, "daemon", d)
	ctx = context.WithValue(ctx, "config", d.config)

	// Start plugins
	for name, p := range d.plugins {
		log.Printf("[Daemon] Checking requirements for plugin: %s", name)

		if err := p.CheckRequirements(ctx); err != nil {
			log.Printf("[Daemon] Plugin %s requirements failed: %v", name, err)
			log.Printf("[Daemon] Skipping plugin: %s", name)
			delete(d.plugins, name)
			continue
		}

		client := transport.NewClient(name, d.dialBroker, transport.ClientOptions{
			RequestTimeout:    time.Duration(d.config.Broker.RequestTimeout) * time.Second,
			ReconnectAttempts: d.config.Broker.ReconnectAttempts,
			ReconnectBackoff:  time.Duration(d.config.Broker.ReconnectBackoffMs) * time.Millisecond,
		})
		if err := client.Connect(ctx); err != nil {
			log.Printf("[Daemon] Failed to connect transport for %s: %v", name, err)
			delete(d.plugins, name)
			continue
		}

		log.Printf("[Daemon] Starting plugin: %s", name)
		if err := p.Start(ctx, client); err != nil {
			log.Printf("[Daemon] Failed to start plugin %s: %v", name, err)
			client.Close()
			delete(d.plugins, name)
			continue
		}

		d.clients[name] = client
		log.Printf("[Daemon] Started plugin: %s", name)
	}

	d.state = StateRunning
	log.Printf("[Daemon] Started with %d active plugin(s)", len(d.plugins))

	return nil
}

// dialBroker hands out the shared broker as a client connection. It
// runs on client (re)connect paths while Start or Stop may hold the
// daemon lock, so it must not touch d.mu.
func (d *Daemon) dialBroker(ctx context.Context) (*transport.Broker, error) {
	if d.stopped.Load() {
		return nil, fmt.Errorf("daemon stopped")
	}
	return d.broker, nil
}

// Stop stops the daemon and all plugins
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateStopped {
		return nil
	}

	log.Println("[Daemon] Stopping daemon...")

	d.stopped.Store(true)
	d.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	// Stop plugins concurrently under the shared shutdown timeout
	var g errgroup.Group
	for name, p := range d.plugins {
		name, p := name, p
		g.Go(func() error {
			log.Printf("[Daemon] Stopping plugin: %s", name)
			if err := p.Stop(ctx); err != nil {
				log.Printf("[Daemon] Error stopping plugin %s: %v", name, err)
				return fmt.Errorf("stopping %s: %w", name, err)
			}
			return nil
		})
	}
	stopErr := g.Wait()

	for _, client := range d.clients {
		client.Close()
	}
	d.clients = make(map[string]*transport.Client)

	d.broker.Close()

	d.state = StateStopped
	log.Println("[Daemon] Stopped")

	return stopErr
}

// GetState returns the current daemon state
func (d *Daemon) GetState() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// GetStatus returns a status string for the daemon
func (d *Daemon) GetStatus(ctx context.Context) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := "Daemon Status:\n"
	status += fmt.Sprintf("  State: %s\n", d.state)
	status += fmt.Sprintf("  Mode: %s\n", d.config.Mode)
	status += fmt.Sprintf("  Active Plugins: %d\n", len(d.plugins))
	status += fmt.Sprintf("  Queues: %d (%d consumed)\n", len(d.broker.QueueNames()), d.broker.ConsumerCount())

	for _, name := range d.broker.QueueNames() {
		if depth := d.broker.QueueDepth(name); depth > 0 {
			status += fmt.Sprintf("  Backlog on %s: %d\n", name, depth)
		}
	}

	return status
}

// GetBroker returns the message broker
func (d *Daemon) GetBroker() *transport.Broker {
	return d.broker
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetPlugins returns all active plugins
func (d *Daemon) GetPlugins() []plugin.Plugin {
	d.mu.RLock()
	defer d.mu.RUnlock()

	plugins := make([]plugin.Plugin, 0, len(d.plugins))
	for _, p := range d.plugins {
		plugins = append(plugins, p)
	}
	return plugins
}

// GetClient returns the transport client handed to a plugin, if that
// plugin is active.
func (d *Daemon) GetClient(name string) (*transport.Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	client, ok := d.clients[name]
	return client, ok
}
