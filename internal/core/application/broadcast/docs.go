// Package broadcast implements the realtime side of the dispatch client:
// topic keys, the channel lease table, the per-topic circuit breaker, the
// breaker-guarded publisher and the adaptive location broadcast scheduler.
//
// All components operate over the ports.RealtimeClient contract so they can
// be exercised against fakes in tests. Raw payloads are decoded exactly once,
// at this package's boundary, into the typed event sum in messages.go.
package broadcast
