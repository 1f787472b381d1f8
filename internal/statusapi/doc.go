// Package statusapi implements the http run mode: a loopback HTTP listener
// answering GET /status with a fixed liveness payload.
//
// The server binds eagerly so a port conflict surfaces as a startup error,
// then serves until its context is cancelled, at which point it stops
// accepting connections and drains in-flight requests before returning.
package statusapi
