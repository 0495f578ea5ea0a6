package storage

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	lockTimeout   = 5 * time.Second // Max time to wait for lock
	lockRetryWait = 500 * time.Millisecond
)

// isProcessRunning is implemented in platform-specific files:
// - process_unix.go for Unix/Linux/macOS
// - process_windows.go for Windows

// fileLock is a PID lock file guarding a store directory against a second process
type fileLock struct {
	path      string
	timeout   time.Duration
	retryWait time.Duration
}

func newFileLock(path string) *fileLock {
	return &fileLock{
		path:      path,
		timeout:   lockTimeout,
		retryWait: lockRetryWait,
	}
}

// cleanStale removes the lock file if the owning process is dead
func (l *fileLock) cleanStale() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No lock file, nothing to clean
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.Printf("Warning: Corrupted lock file (invalid PID), removing...")
		return os.Remove(l.path)
	}

	if isProcessRunning(pid) {
		return fmt.Errorf("lock held by running process %d", pid)
	}

	log.Printf("Stale lock detected (PID %d not running), cleaning...", pid)
	return os.Remove(l.path)
}

// acquire takes the lock, waiting up to l.timeout for another process to release it
func (l *fileLock) acquire() error {
	ourPID := os.Getpid()

	if l.heldBy(ourPID) {
		log.Printf("Lock already held by this process (PID %d)", ourPID)
		return nil
	}

	startTime := time.Now()

	for {
		if err := l.cleanStale(); err != nil {
			elapsed := time.Since(startTime)
			if elapsed >= l.timeout {
				return fmt.Errorf("timeout waiting for store lock after %v: %w", elapsed, err)
			}

			log.Printf("Store locked by another process, waiting... (%v elapsed)", elapsed.Round(100*time.Millisecond))
			time.Sleep(l.retryWait)
			continue
		}

		// O_EXCL so two processes racing past cleanStale cannot both win
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		_, writeErr := f.WriteString(strconv.Itoa(ourPID))
		closeErr := f.Close()
		if writeErr != nil || closeErr != nil {
			os.Remove(l.path)
			return fmt.Errorf("failed to write lock file: %v", firstErr(writeErr, closeErr))
		}

		log.Printf("✓ Store lock acquired (PID %d)", ourPID)
		return nil
	}
}

// release removes the lock file if this process owns it
func (l *fileLock) release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Lock already removed
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err == nil && pid != os.Getpid() {
		log.Printf("Warning: Lock file contains different PID (%d vs %d), not removing", pid, os.Getpid())
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	log.Printf("✓ Store lock released")
	return nil
}

func (l *fileLock) heldBy(pid int) bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	owner, err := strconv.Atoi(strings.TrimSpace(string(data)))
	return err == nil && owner == pid
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
