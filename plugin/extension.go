package plugin

import "context"

// ExtensionType represents the type of extension
type ExtensionType string

const (
	// ExtensionTypeCommand represents an admin command extension
	ExtensionTypeCommand ExtensionType = "command"
	// ExtensionTypeService represents a message service extension
	ExtensionTypeService ExtensionType = "service"
)

// Extension represents a capability provided by a plugin
type Extension interface {
	// Type returns the extension type
	Type() ExtensionType

	// Name returns the extension identifier
	Name() string

	// SupportsMode checks if the extension works in the given mode
	SupportsMode(mode Mode) bool
}

// Command represents an admin command that can be executed
type Command struct {
	// Name is the command identifier (e.g., "status", "tenants")
	Name string

	// Description is a short description of what the command does
	Description string

	// Usage shows how to use the command
	Usage string

	// Handler is the function that executes the command
	Handler CommandHandler

	// Modes lists the modes in which this command is available
	Modes []Mode

	// Hidden indicates if the command should be hidden from help
	Hidden bool
}

// CommandHandler processes a command and returns a result
type CommandHandler func(ctx context.Context, args []string) (*CommandResult, error)

// CommandResult contains the result of command execution
type CommandResult struct {
	// Output is the text output to display
	Output string

	// Data contains structured data (for API responses)
	Data interface{}
}

// CommandExtension wraps a command as an extension
type CommandExtension struct {
	command *Command
}

// NewCommandExtension creates a new command extension
func NewCommandExtension(cmd *Command) *CommandExtension {
	return &CommandExtension{command: cmd}
}

// Type returns the extension type
func (c *CommandExtension) Type() ExtensionType {
	return ExtensionTypeCommand
}

// Name returns the command name
func (c *CommandExtension) Name() string {
	return c.command.Name
}

// SupportsMode checks if the command supports the given mode
func (c *CommandExtension) SupportsMode(mode Mode) bool {
	if len(c.command.Modes) == 0 {
		return true // If no modes specified, available in all modes
	}
	for _, m := range c.command.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Command returns the underlying command
func (c *CommandExtension) Command() *Command {
	return c.command
}

// ServiceExtension describes a plugin's message service: the queue
// actions it consumes. The actions command uses it for discovery.
type ServiceExtension struct {
	service string
	actions func() []string
}

// NewServiceExtension creates a service extension. The actions func is
// evaluated lazily so registration order does not matter.
func NewServiceExtension(service string, actions func() []string) *ServiceExtension {
	return &ServiceExtension{service: service, actions: actions}
}

// Type returns the extension type
func (s *ServiceExtension) Type() ExtensionType {
	return ExtensionTypeService
}

// Name returns the service name
func (s *ServiceExtension) Name() string {
	return s.service
}

// SupportsMode checks if the extension supports the given mode
func (s *ServiceExtension) SupportsMode(mode Mode) bool {
	return true
}

// Actions returns the queue names this service consumes
func (s *ServiceExtension) Actions() []string {
	if s.actions == nil {
		return nil
	}
	return s.actions()
}
