package cmd

import (
	"context"
	"fmt"
	"strings"

	"switchboard/plugin"
)

// init registers built-in commands
func init() {
	Register(&plugin.Command{
		Name:        "help",
		Description: "Show available commands or help for a specific command",
		Usage:       "[command]",
		Handler:     handleHelp,
		Modes:       []plugin.Mode{plugin.ModeDaemon, plugin.ModeInteractive},
	})

	Register(&plugin.Command{
		Name:        "status",
		Description: "Show daemon status, broker queues and active plugins",
		Usage:       "",
		Handler:     handleStatus,
		Modes:       []plugin.Mode{plugin.ModeDaemon, plugin.ModeInteractive},
	})

	Register(&plugin.Command{
		Name:        "plugins",
		Description: "List all registered plugins",
		Usage:       "",
		Handler:     handlePlugins,
		Modes:       []plugin.Mode{plugin.ModeDaemon, plugin.ModeInteractive},
	})

	Register(&plugin.Command{
		Name:        "actions",
		Description: "List the queue actions every active service consumes",
		Usage:       "",
		Handler:     handleActions,
		Modes:       []plugin.Mode{plugin.ModeDaemon, plugin.ModeInteractive},
	})
}

// handleHelp shows help for all commands or a specific command
func handleHelp(ctx context.Context, args []string) (*plugin.CommandResult, error) {
	router := NewRouter()

	// If specific command requested, show its help
	if len(args) > 0 {
		cmdName := strings.TrimPrefix(args[0], "/")
		helpText, err := router.GetCommandHelp(cmdName)
		if err != nil {
			return nil, err
		}
		return &plugin.CommandResult{Output: helpText}, nil
	}

	// Otherwise show all commands
	mode, ok := ctx.Value("mode").(plugin.Mode)
	if !ok {
		mode = plugin.ModeDaemon // Default to daemon mode
	}

	helpText := router.GetHelp(mode)
	return &plugin.CommandResult{Output: helpText}, nil
}

// handleStatus shows the current daemon status
func handleStatus(ctx context.Context, args []string) (*plugin.CommandResult, error) {
	// Try to get daemon instance from context
	daemon, ok := ctx.Value("daemon").(StatusProvider)
	if !ok {
		return &plugin.CommandResult{
			Output: "Status: Running (daemon context not available)",
		}, nil
	}

	status := daemon.GetStatus(ctx)
	return &plugin.CommandResult{
		Output: status,
	}, nil
}

// handlePlugins lists all registered plugins
func handlePlugins(ctx context.Context, args []string) (*plugin.CommandResult, error) {
	registry := plugin.GetRegistry()
	plugins := registry.All()

	if len(plugins) == 0 {
		return &plugin.CommandResult{
			Output: "No plugins registered",
		}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Registered plugins (%d):\n\n", len(plugins)))

	for i, p := range plugins {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, p.Name()))

		// Show extensions
		extensions := p.Extensions()
		if len(extensions) > 0 {
			sb.WriteString("   Extensions: ")
			var extNames []string
			for _, ext := range extensions {
				extNames = append(extNames, fmt.Sprintf("%s:%s", ext.Type(), ext.Name()))
			}
			sb.WriteString(strings.Join(extNames, ", "))
			sb.WriteString("\n")
		}
	}

	return &plugin.CommandResult{
		Output: sb.String(),
	}, nil
}

// handleActions lists the queue actions exposed by every plugin that
// carries a service extension
func handleActions(ctx context.Context, args []string) (*plugin.CommandResult, error) {
	registry := plugin.GetRegistry()

	var sb strings.Builder
	found := 0

	for _, p := range registry.All() {
		for _, ext := range p.Extensions() {
			svc, ok := ext.(*plugin.ServiceExtension)
			if !ok {
				continue
			}
			found++

			sb.WriteString(fmt.Sprintf("%s:\n", svc.Name()))
			for _, action := range svc.Actions() {
				sb.WriteString(fmt.Sprintf("  %s\n", action))
			}
			sb.WriteString("\n")
		}
	}

	if found == 0 {
		return &plugin.CommandResult{Output: "No message services registered"}, nil
	}

	return &plugin.CommandResult{Output: sb.String()}, nil
}

// StatusProvider interface for getting daemon status
type StatusProvider interface {
	GetStatus(ctx context.Context) string
}
