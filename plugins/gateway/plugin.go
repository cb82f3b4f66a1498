// Package gateway exposes the message fabric over WebSocket. External
// clients send action frames; the gateway forwards them to the owning
// service and streams replies back on the same connection.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"switchboard/cmd"
	"switchboard/internal/config"
	"switchboard/plugin"
	"switchboard/transport"

	"github.com/gorilla/websocket"
)

// init registers the gateway plugin
func init() {
	plugin.Register(NewGatewayPlugin())
}

// GatewayPlugin serves the WebSocket entry point
type GatewayPlugin struct {
	client   *transport.Client
	router   *cmd.Router
	ctx      context.Context
	server   *http.Server
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

// Frame is one WebSocket message in either direction
type Frame struct {
	// Type is "message", "command", "reply" or "error"
	Type string `json:"type"`

	// ID echoes the client-chosen request id in replies
	ID string `json:"id,omitempty"`

	// Service, Action and Subdomain address a fabric operation
	Service   string `json:"service,omitempty"`
	Action    string `json:"action,omitempty"`
	Subdomain string `json:"subdomain,omitempty"`

	// IsRPC selects request/reply over fire-and-forget
	IsRPC bool `json:"isRPC,omitempty"`

	// Data carries the operation payload or reply value
	Data json.RawMessage `json:"data,omitempty"`

	// Payload carries command text and error messages
	Payload string `json:"payload,omitempty"`
}

// NewGatewayPlugin creates a new gateway plugin
func NewGatewayPlugin() *GatewayPlugin {
	return &GatewayPlugin{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Add origin checking for security
				return true
			},
		},
	}
}

// Name returns the plugin name
func (p *GatewayPlugin) Name() string {
	return "gateway"
}

// CheckRequirements validates plugin requirements
func (p *GatewayPlugin) CheckRequirements(ctx context.Context) error {
	checker := plugin.NewRequirementChecker("gateway")

	checker.AddRequired(
		"daemon_mode",
		"Gateway requires daemon mode",
		plugin.RequireMode(plugin.ModeDaemon),
	)

	return checker.Check(ctx)
}

// Extensions returns the plugin's extensions
func (p *GatewayPlugin) Extensions() []plugin.Extension {
	return []plugin.Extension{}
}

// Start initializes the WebSocket server
func (p *GatewayPlugin) Start(ctx context.Context, client *transport.Client) error {
	p.client = client
	p.ctx = ctx
	p.router = cmd.NewRouter()

	port := 8080
	if cfg, ok := ctx.Value("config").(*config.Config); ok {
		if portVal, ok := cfg.GetPluginSettingInt("gateway", "port"); ok {
			port = portVal
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", p.handleWebSocket)

	p.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Printf("[Gateway] Starting server on port %d", port)
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Gateway] Server error: %v", err)
		}
	}()

	log.Printf("[Gateway] Started")
	return nil
}

// Stop shuts down the WebSocket server
func (p *GatewayPlugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[*websocket.Conn]*sync.Mutex)
	p.mu.Unlock()

	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			log.Printf("[Gateway] Error shutting down server: %v", err)
		}
	}

	log.Printf("[Gateway] Stopped")
	return nil
}

// handleWebSocket upgrades and registers a client connection
func (p *GatewayPlugin) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	p.mu.Lock()
	p.clients[conn] = &sync.Mutex{}
	p.mu.Unlock()

	log.Printf("[Gateway] Client connected from %s", r.RemoteAddr)

	p.sendToClient(conn, Frame{
		Type:    "reply",
		Payload: "Connected to switchboard gateway",
	})

	go p.handleClientFrames(conn)
}

// handleClientFrames receives and processes frames from one client
func (p *GatewayPlugin) handleClientFrames(conn *websocket.Conn) {
	defer func() {
		p.mu.Lock()
		delete(p.clients, conn)
		p.mu.Unlock()
		conn.Close()
		log.Printf("[Gateway] Client disconnected")
	}()

	for {
		var frame Frame
		err := conn.ReadJSON(&frame)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}

		log.Printf("[Gateway] Received: type=%s, service=%s, action=%s", frame.Type, frame.Service, frame.Action)

		switch frame.Type {
		case "message":
			// Forward concurrently so one slow RPC does not block the
			// connection's other requests.
			go p.handleMessage(conn, frame)

		case "command":
			p.handleCommand(conn, frame)

		default:
			p.sendToClient(conn, Frame{
				Type:    "error",
				ID:      frame.ID,
				Payload: fmt.Sprintf("Unknown frame type: %s", frame.Type),
			})
		}
	}
}

// handleMessage forwards a client frame onto the fabric
func (p *GatewayPlugin) handleMessage(conn *websocket.Conn, frame Frame) {
	if frame.Service == "" || frame.Action == "" {
		p.sendToClient(conn, Frame{
			Type:    "error",
			ID:      frame.ID,
			Payload: "service and action are required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, 30*time.Second)
	defer cancel()

	var data interface{}
	if len(frame.Data) > 0 {
		data = json.RawMessage(frame.Data)
	}

	result, err := p.client.SendMessage(ctx, transport.SendArgs{
		ServiceName: frame.Service,
		Subdomain:   frame.Subdomain,
		Action:      frame.Action,
		Data:        data,
		IsRPC:       frame.IsRPC,
	})
	if err != nil {
		p.sendToClient(conn, Frame{
			Type:    "error",
			ID:      frame.ID,
			Payload: err.Error(),
		})
		return
	}

	p.sendToClient(conn, Frame{
		Type:    "reply",
		ID:      frame.ID,
		Service: frame.Service,
		Action:  frame.Action,
		Data:    result,
	})
}

// handleCommand runs an admin command for the client
func (p *GatewayPlugin) handleCommand(conn *websocket.Conn, frame Frame) {
	result, err := p.router.Route(p.ctx, frame.Payload)
	if err != nil {
		p.sendToClient(conn, Frame{
			Type:    "error",
			ID:      frame.ID,
			Payload: err.Error(),
		})
		return
	}

	if result != nil {
		data, _ := json.Marshal(result.Data)
		p.sendToClient(conn, Frame{
			Type:    "reply",
			ID:      frame.ID,
			Payload: result.Output,
			Data:    data,
		})
	}
}

// sendToClient writes one frame, serialized per connection
func (p *GatewayPlugin) sendToClient(conn *websocket.Conn, frame Frame) {
	p.mu.RLock()
	writeMu, ok := p.clients[conn]
	p.mu.RUnlock()
	if !ok {
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[Gateway] Write error: %v", err)
	}
}
