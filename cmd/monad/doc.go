// Package main hosts the monad CLI entrypoint and command graph.
//
// The Cobra-based command tree runs either daemon variant in the foreground
// (loop, serve), manages a detached daemon through its pid file (start, stop,
// status), and scaffolds configuration. Runtime wiring lives in the internal
// packages; commands here only resolve configuration and render output.
package main
