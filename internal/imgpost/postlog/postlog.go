// Package postlog tracks which images have already been published, backed by
// a flat append-only text file with one path per line.
package postlog

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Log is a handle to the posted-image log file. The file may not exist yet;
// membership checks treat a missing log as empty.
type Log struct {
	path string
}

// New returns a Log backed by the file at path. The file is not created
// until the first Append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// IsPosted reports whether imagePath appears in the log. Identity is the
// exact path string recorded at posting time, not file content, so two
// spellings of the same file are distinct entries.
func (l *Log) IsPosted(imagePath string) (bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read post log: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimRight(line, "\r") == imagePath {
			return true, nil
		}
	}
	return false, nil
}

// Append records imagePath as posted. Duplicate entries are not rejected;
// IsPosted tolerates them.
func (l *Log) Append(imagePath string) error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open post log: %w", err)
	}

	if _, err := fmt.Fprintln(file, imagePath); err != nil {
		file.Close()
		return fmt.Errorf("write post log: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close post log: %w", err)
	}
	return nil
}
