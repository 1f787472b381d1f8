// Package daemon coordinates the long-running monad process.
//
// It wires configuration, the installed shutdown handle, the selected run
// mode (idle loop or status service) and the optional metrics listener into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Mode-specific behaviour lives in the idle and statusapi packages; the daemon
// focuses on startup, shutdown, and high level coordination.
package daemon
