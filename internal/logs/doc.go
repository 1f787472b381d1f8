// Package logs reads the per-run daemon log for `monad logs`.
//
// Reads are bounded: Last keeps only a ring of the requested lines, and
// Follow polls from a byte offset so it never rereads the whole file. When
// the monad.log pointer moves to a newer run the file shrinks below the
// saved offset and reading restarts from the top.
package logs
