// Package shutdown coordinates graceful termination of long-running
// commands such as the interactive shell and the mock server.
//
// Hooks are registered with a name and run in reverse order of
// registration when SIGINT or SIGTERM arrives, when the parent context
// is cancelled, or when Shutdown is called directly.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("mock server", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
