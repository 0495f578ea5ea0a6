//go:build unix

package storage

import "syscall"

// isProcessRunning checks if a process with given PID is running on Unix systems
func isProcessRunning(pid int) bool {
	// Signal 0 performs the permission and existence checks without delivering anything
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}

	switch err {
	case syscall.ESRCH:
		// no such process
		return false
	case syscall.EPERM:
		// exists, owned by someone else
		return true
	default:
		return false
	}
}
