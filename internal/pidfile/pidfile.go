// Package pidfile guards against running two server instances over the same
// database by recording the process id on disk.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned by Acquire when the pidfile names a process
// that is still alive.
var ErrAlreadyRunning = errors.New("pidfile: another instance is running")

// Pidfile is an acquired pidfile, released on shutdown
type Pidfile struct {
	path string
}

// Acquire writes the current process id to path. A pidfile left behind by a
// dead process is replaced; one owned by a live process fails the acquire.
func Acquire(path string) (*Pidfile, error) {
	if pid, err := readPid(path); err == nil && processAlive(pid) {
		return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create pidfile directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("failed to write pidfile: %w", err)
	}

	return &Pidfile{path: path}, nil
}

// Path returns the pidfile location
func (p *Pidfile) Path() string {
	return p.path
}

// Release removes the pidfile. A file already gone is not an error.
func (p *Pidfile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pidfile: %w", err)
	}
	return nil
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive probes the pid with signal 0
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
