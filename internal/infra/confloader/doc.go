// Package confloader loads configuration from layered sources with
// koanf.
//
// Priority (highest to lowest):
//
//  1. Values passed to Override (command-line flags)
//  2. Environment variables (KUBEDASH_ prefix)
//  3. A .env file read with godotenv
//  4. The YAML configuration file
//  5. Defaults already present in the target struct
//
// Environment keys map onto configuration keys by lowercasing and
// turning the first underscore after the prefix into a dot, so
// KUBEDASH_API_CACHE_TTL sets api.cache_ttl and KUBEDASH_SERVER sets
// server.
//
// Watcher reports writes to configuration or certificate files so
// long-running commands can reload them.
package confloader
