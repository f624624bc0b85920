package repl

import (
	"slices"
	"strings"
)

// builtins are handled by the REPL itself.
var builtins = []string{"exit", "history", "quit"}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over command paths such as
// "cluster list". The REPL builtins are always included.
func NewCompleter(commands ...string) *Completer {
	all := append(slices.Clone(commands), builtins...)
	slices.Sort(all)
	return &Completer{commands: slices.Compact(all)}
}

// Complete returns the command paths starting with prefix. A prefix
// naming a complete command lists its subcommands.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.Join(strings.Fields(prefix), " ")
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) && cmd != prefix {
			suggestions = append(suggestions, cmd)
		}
	}
	if len(suggestions) == 0 && slices.Contains(c.commands, prefix) {
		suggestions = append(suggestions, prefix)
	}
	return suggestions
}

// Commands returns every known command path.
func (c *Completer) Commands() []string {
	return slices.Clone(c.commands)
}
