package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside a session directory.
const FileName = "LOCK"

// LockHeldError is returned when another daemon already owns the session.
type LockHeldError struct {
	PID     int
	Session string
	Path    string
}

func (e *LockHeldError) Error() string {
	if e.Session != "" {
		return fmt.Sprintf("session %q already has a daemon (PID %d, %s)", e.Session, e.PID, e.Path)
	}
	return fmt.Sprintf("session lock held by PID %d (%s)", e.PID, e.Path)
}

// Info is the content recorded in a lock file.
type Info struct {
	PID     int
	Session string
	Since   time.Time
}

// Lock represents an acquired session lock file. Holding it guarantees a
// single daemon, and therefore a single realtime connection, per session.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive flock on sessionDir/LOCK.
// Returns LockHeldError if another process already holds it.
func Acquire(sessionDir, sessionName string) (*Lock, error) {
	lockPath := filepath.Join(sessionDir, FileName)

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		info, _ := Holder(sessionDir)
		return nil, &LockHeldError{PID: info.PID, Session: info.Session, Path: lockPath}
	}

	content := fmt.Sprintf("pid=%d\nsession=%s\ntime=%s\n", os.Getpid(), sessionName, time.Now().UTC().Format(time.RFC3339))
	if err := rewrite(f, content); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Holder reads the lock file in sessionDir without taking the lock.
func Holder(sessionDir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, FileName))
	if err != nil {
		return Info{}, err
	}
	return parse(string(data)), nil
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func rewrite(f *os.File, content string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(content)
	return err
}

func parse(content string) Info {
	var info Info
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "session":
			info.Session = value
		case "time":
			info.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info
}
