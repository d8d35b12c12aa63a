// Package shutdown runs cleanup hooks when chaingate-server is asked to
// stop.
//
// Hooks run in reverse order of registration under one shared timeout, so
// components registered while starting up are torn down in the opposite
// order:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown("state store", store.Close)
//	h.OnShutdown("worker pool", stopPool)
//	err := h.Wait(ctx) // SIGINT, SIGTERM or ctx cancellation
package shutdown
