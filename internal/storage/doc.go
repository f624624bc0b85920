// Package storage provides the key-value store behind the CLI session.
//
// Service namespaces keys with a prefix and wraps every value in a JSON
// envelope carrying its write time and optional expiration. Expired
// entries are removed lazily on read or by an explicit Cleanup.
//
// Architecture:
//
//   - Backend: persistent engine interface (Badger in production)
//   - memory.Backend: sharded in-memory engine, used when no persistent
//     engine is available and as the fallback for failed writes
//   - Optional at-rest encryption of envelopes with an AEAD cipher
//     derived from a passphrase (pkg/crypto/adaptive)
package storage
