// Package preflight provides readiness checks for the filesystem paths and
// listen addresses monad depends on.
//
// These checks run in two contexts:
//   - daemonrun calls RunAll at startup and logs any failure before the daemon
//     takes its lock.
//   - The CLI "monad status" and "monad config validate" commands display the
//     same results.
package preflight
