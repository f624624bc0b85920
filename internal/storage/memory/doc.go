// Package memory provides an in-memory storage backend for kubedash.
//
// It implements storage.Backend using a sharded concurrent map. The
// storage service uses it when no persistent engine is available and
// as the fallback for writes the persistent engine rejected.
package memory
