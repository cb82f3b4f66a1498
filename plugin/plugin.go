package plugin

import (
	"context"

	"switchboard/transport"
)

// Mode represents the execution mode of the daemon
type Mode string

const (
	// ModeDaemon represents headless service mode
	ModeDaemon Mode = "daemon"
	// ModeInteractive represents interactive mode with user input
	ModeInteractive Mode = "interactive"
)

// Plugin represents an independently deployable service hosted by the
// daemon. Each plugin owns its actions, models and tenant data; plugins
// reach each other only through the message transport.
type Plugin interface {
	// Name returns the unique plugin identifier. It is also the
	// plugin's queue namespace prefix.
	Name() string

	// CheckRequirements validates if the plugin can run in the current environment
	CheckRequirements(ctx context.Context) error

	// Extensions returns all extensions this plugin provides
	Extensions() []Extension

	// Start initializes the plugin. The transport client is the
	// plugin's own handle on the messaging fabric: it registers the
	// plugin's queue consumers on it and uses it for outbound calls.
	Start(ctx context.Context, client *transport.Client) error

	// Stop gracefully shuts down the plugin
	Stop(ctx context.Context) error
}
