// Package selector picks the next image to publish from a local directory.
package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// ErrExhausted is returned when the directory holds no candidate that has
// not been posted yet. It is a normal terminal outcome, not a failure.
var ErrExhausted = errors.New("no unposted images found")

// Selector scans a directory in random order and returns the first entry
// the posted check does not know about.
type Selector struct {
	// Posted reports whether a path was already published.
	Posted func(path string) (bool, error)

	// Rand drives the shuffle. When nil a time-seeded source is used; tests
	// inject a fixed seed for determinism.
	Rand *rand.Rand
}

// Next returns the path of the next image to post out of dir. The scan is
// non-recursive and applies no extension filter; any regular entry is a
// candidate. Subdirectories are skipped.
func (s *Selector) Next(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read image directory: %w", err)
	}

	candidates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, entry.Name()))
	}

	rng := s.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	// Shuffle so repeated runs don't walk the directory in the same order.
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, candidate := range candidates {
		posted, err := s.Posted(candidate)
		if err != nil {
			return "", err
		}
		if !posted {
			return candidate, nil
		}
	}

	return "", ErrExhausted
}
