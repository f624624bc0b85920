// Package mock provides an in-memory dashboard backend for local
// development and tests.
//
// The backend serves every dashboard endpoint over fixture data, issues
// HS256 JWTs on login and checks bearer tokens on every other route. It
// is available as an http.Handler (see Server) and as an in-process Doer
// that needs no network.
package mock
