// Package connection provides backend connectivity for kubedash-cli.
//
// This package manages connections to dashboard backends:
//
//   - http.go: the HTTP transport used by the API service
//   - manager.go: saved connection profiles and the active connection
//
// Features:
//
//   - Multiple connection profiles persisted in the CLI config
//   - Client-side rate limiting
//   - Per-request X-Request-ID and User-Agent headers
package connection
