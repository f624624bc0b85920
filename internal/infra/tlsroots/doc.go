// Package tlsroots builds TLS settings for kubedash.
//
// ClientConfig adds a custom CA bundle to the system roots for the API
// client. Watcher serves the mock server's certificate and reloads it
// when the files change on disk.
package tlsroots
