//go:build !reactor_debug

package reactor

// assertReactorThread is a no-op in release builds; see debug_affinity.go
// for the reactor_debug-tagged implementation.
func assertReactorThread(r *Reactor) {}
