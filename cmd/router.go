package cmd

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"switchboard/plugin"
)

// Router turns operator input into command executions against the
// shared table.
type Router struct {
	table *Table
}

// NewRouter creates a new command router
func NewRouter() *Router {
	return &Router{table: Commands()}
}

// Route parses an input line and executes the named command.
// Accepts "/command arg1 arg2" and "command arg1 arg2"; quoted
// segments stay one argument, so tenant names with spaces and JSON
// payloads survive tokenizing.
func (r *Router) Route(ctx context.Context, input string) (*plugin.CommandResult, error) {
	name, args, err := splitInput(input)
	if err != nil {
		return nil, err
	}
	return r.table.Execute(ctx, name, args)
}

// IsCommand reports whether input addresses the command surface rather
// than the message fabric.
func (r *Router) IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// splitInput tokenizes an input line into command name and arguments.
func splitInput(input string) (string, []string, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	if input == "" {
		return "", nil, fmt.Errorf("empty command")
	}

	tokens, err := splitArgs(input)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}

	return tokens[0], tokens[1:], nil
}

// splitArgs splits on whitespace outside quotes. Single and double
// quotes both group; single quotes let an argument carry JSON without
// escaping.
func splitArgs(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote rune

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				tokens = append(tokens, cur.String())
				cur.Reset()
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			flush()
			quote = r
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	flush()

	return tokens, nil
}

// GetHelp returns the command listing for a mode, grouped by the
// service that contributed each command.
func (r *Router) GetHelp(mode plugin.Mode) string {
	entries := r.table.Available(mode)
	if len(entries) == 0 {
		return "No commands available."
	}

	var sb strings.Builder
	sb.WriteString("Available commands:\n")

	lastSource := ""
	for _, e := range entries {
		if e.Source != lastSource {
			sb.WriteString(fmt.Sprintf("\n%s:\n", e.Source))
			lastSource = e.Source
		}

		sb.WriteString(fmt.Sprintf("  /%s", e.Command.Name))
		if e.Command.Usage != "" {
			sb.WriteString(fmt.Sprintf(" %s", e.Command.Usage))
		}
		sb.WriteString("\n")

		if e.Command.Description != "" {
			sb.WriteString(fmt.Sprintf("      %s\n", e.Command.Description))
		}
	}

	return sb.String()
}

// GetCommandHelp returns help text for one command, including which
// service provides it.
func (r *Router) GetCommandHelp(name string) (string, error) {
	e, exists := r.table.Lookup(name)
	if !exists {
		return "", fmt.Errorf("unknown command: %s", name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Command: /%s\n\n", e.Command.Name))

	if e.Command.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", e.Command.Description))
	}

	if e.Command.Usage != "" {
		sb.WriteString(fmt.Sprintf("Usage: /%s %s\n", e.Command.Name, e.Command.Usage))
	}

	if e.Source != CoreSource {
		sb.WriteString(fmt.Sprintf("Provided by: %s\n", e.Source))
	}

	if len(e.Command.Modes) > 0 {
		sb.WriteString(fmt.Sprintf("\nAvailable in modes: %v", e.Command.Modes))
	}

	return sb.String(), nil
}
