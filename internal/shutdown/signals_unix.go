//go:build unix

package shutdown

import "syscall"

func init() {
	defaultSignals = append(defaultSignals, syscall.SIGTERM)
}
