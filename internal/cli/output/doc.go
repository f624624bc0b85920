// Package output provides output formatting for kubedash-cli.
//
// This package handles all CLI output formatting:
//
//   - formatter.go: Formatter interface, factory and Printer
//   - table.go: Table rendering with wide mode support
//   - json.go: JSON output formatting
//   - yaml.go: YAML output formatting
//
// Commands hand the Printer both the raw value, used for json and
// yaml, and an optional Table, used for table output. Without a Table
// the value is rendered by reflection.
package output
