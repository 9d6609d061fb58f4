// Package trace records what the lowering driver is doing: one span per
// module pass and one per lowered procedure, plus periodic heartbeats that
// make a stuck pass visible.
//
// # Usage
//
// Tracing is switched on from the command line:
//
//	ssnorm lower --trace=- --trace-level=detail loops
//
// # Tracers
//
//   - Nop: disabled tracing, no allocation
//   - StreamTracer: writes every event as it arrives
//   - RingTracer: keeps the last N events for post-mortem dumps
//   - MultiTracer: fans events out to several tracers
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: only dumps taken on failure
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: adds one span per procedure
//   - LevelDebug: everything, including node-level points
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "lower:loops", 0)
//	defer span.End("")
package trace
