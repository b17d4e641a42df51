//go:build !unix && !windows

package index

// Without a probe every recorded holder is assumed alive.
func processAlive(pid int) bool { return true }
