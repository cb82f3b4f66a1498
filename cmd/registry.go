// Package cmd is the admin command surface. Plugins contribute
// commands at init time; the console, gateway and notifier route
// operator input through the shared table.
package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"switchboard/plugin"
)

// CoreSource tags commands owned by the daemon itself rather than a
// service plugin.
const CoreSource = "core"

// Entry pairs a registered command with the service that contributed
// it. Help output and duplicate diagnostics use the source.
type Entry struct {
	Command *plugin.Command
	Source  string
}

// Table holds every registered admin command, keyed by name across all
// sources. Command names share one namespace so operator input stays
// unambiguous.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var table = &Table{entries: make(map[string]Entry)}

// Register adds a core command to the shared table.
// This is typically called from init() functions.
func Register(cmd *plugin.Command) {
	RegisterFor(CoreSource, cmd)
}

// RegisterFor adds a command contributed by the named service. A name
// collision panics, naming both owners.
func RegisterFor(source string, cmd *plugin.Command) {
	table.mu.Lock()
	defer table.mu.Unlock()

	if prev, exists := table.entries[cmd.Name]; exists {
		panic(fmt.Sprintf("command %s from %s already registered by %s", cmd.Name, source, prev.Source))
	}

	table.entries[cmd.Name] = Entry{Command: cmd, Source: source}
	log.Printf("[Commands] %s registered: /%s", source, cmd.Name)
}

// Commands returns the shared command table
func Commands() *Table {
	return table
}

// Lookup retrieves a command entry by name
func (t *Table) Lookup(name string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, exists := t.entries[name]
	return e, exists
}

// Available returns the visible commands usable in the given mode,
// ordered core first, then by source and name.
func (t *Table) Available(mode plugin.Mode) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	for _, e := range t.entries {
		if e.Command.Hidden {
			continue
		}
		if plugin.NewCommandExtension(e.Command).SupportsMode(mode) {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			if out[i].Source == CoreSource {
				return true
			}
			if out[j].Source == CoreSource {
				return false
			}
			return out[i].Source < out[j].Source
		}
		return out[i].Command.Name < out[j].Command.Name
	})

	return out
}

// Execute runs a command by name after mode gating
func (t *Table) Execute(ctx context.Context, name string, args []string) (*plugin.CommandResult, error) {
	e, exists := t.Lookup(name)
	if !exists {
		return nil, fmt.Errorf("unknown command: %s", name)
	}

	if mode, ok := ctx.Value("mode").(plugin.Mode); ok {
		if !plugin.NewCommandExtension(e.Command).SupportsMode(mode) {
			return nil, fmt.Errorf("command /%s not available in %s mode", name, mode)
		}
	}

	log.Printf("[Commands] Running /%s (%s) with %d arg(s)", name, e.Source, len(args))
	return e.Command.Handler(ctx, args)
}

// Sources returns the distinct command sources, sorted.
func (t *Table) Sources() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range t.entries {
		seen[e.Source] = struct{}{}
	}

	sources := make([]string, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// Count returns the number of registered commands
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear empties the table. Primarily useful for testing.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]Entry)
}
