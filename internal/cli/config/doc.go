// Package config provides the kubedash-cli configuration.
//
// This package defines the CLI configuration:
//
//   - spec.go: CLIConfig struct (~/.kubedash/cli.yaml)
//   - loader.go: loading (file, .env, environment, flags) and saving
//
// Configuration includes:
//
//   - Backend server and saved connection profiles
//   - Output format preference
//   - API timeout, cache TTL and client-side rate limit
//   - Storage directory, key prefix and passphrase
//   - Session refresh and check intervals
//   - Log and tracing settings
package config
