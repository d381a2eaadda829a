package tle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cache keeps timestamped snapshots of fetched data on disk so the
// generator and the server can run offline against the last good fetch.
// Snapshot files are named prefix_<unix>.ext; the timestamp in the name is
// authoritative, not the file's mtime.
type Cache struct {
	dir      string
	prefix   string
	ext      string
	maxFiles int
}

// NewCache creates a Cache under dir keeping at most maxFiles snapshots.
func NewCache(dir, prefix, ext string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		prefix:   prefix + "_",
		ext:      "." + strings.TrimPrefix(ext, "."),
		maxFiles: maxFiles,
	}
}

// Write saves a snapshot stamped ts and prunes the oldest ones beyond
// maxFiles.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	name := fmt.Sprintf("%s%d%s", c.prefix, ts.Unix(), c.ext)
	if err := os.WriteFile(filepath.Join(c.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return c.prune()
}

// LoadLatest returns the newest snapshot and its timestamp.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, fmt.Errorf("no %s*%s snapshots under %s", c.prefix, c.ext, c.dir)
	}

	newest := snaps[len(snaps)-1]
	data, err := os.ReadFile(newest.path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return data, newest.ts, nil
}

type snapshot struct {
	path string
	ts   time.Time
}

// snapshots lists this cache's files oldest first. Files whose name does
// not carry a parseable timestamp are ignored, as are other caches sharing
// the directory.
func (c *Cache) snapshots() ([]snapshot, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, c.prefix+"*"+c.ext))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	snaps := make([]snapshot, 0, len(matches))
	for _, path := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), c.prefix), c.ext)
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{path: path, ts: time.Unix(unix, 0)})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].ts.Before(snaps[j].ts)
	})
	return snaps, nil
}

func (c *Cache) prune() error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	for _, s := range snaps[:max(0, len(snaps)-c.maxFiles)] {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("pruning snapshot %s: %w", filepath.Base(s.path), err)
		}
	}
	return nil
}
