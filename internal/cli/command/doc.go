// Package command defines the kubedash-cli commands on urfave/cli/v2.
//
// Every command follows the same pattern: resolve the shared Env from
// the app metadata, obtain the services it needs (Session for commands
// that require a login), call the dashboard and print the result with
// the selected output format.
//
// The Env is created by the root Before hook and closed by After. The
// shell injects its own Env into each line's app so one session spans
// the whole interactive run.
package command
