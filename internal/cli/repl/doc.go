// Package repl provides the interactive shell of kubedash-cli.
//
// This package implements the Read-Eval-Print Loop for interactive sessions:
//
//   - repl.go: main loop, line splitting and dispatch
//   - completer.go: command completion ("cluster ?" lists subcommands)
//   - history.go: command history persistence (~/.kubedash/history)
//
// Lines are split into arguments and handed to an Executor, which runs
// them against services shared for the whole session.
package repl
