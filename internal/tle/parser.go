// Package tle fetches, parses and caches NORAD two-line element sets, the
// input to the trajectory generator.
package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ElementSet is one satellite's two-line element set. CatalogNumber is the
// same identifier conjunction records and trajectory packets carry, so it
// joins the element set to the rest of the pipeline.
type ElementSet struct {
	CatalogNumber int
	Name          string
	Line1         string
	Line2         string
}

// Parse reads three-line NORAD TLE text (name line, orbit line 1, orbit
// line 2) and returns one ElementSet per satellite. Damaged entries are
// skipped with a warning; only a read failure is an error.
func Parse(r io.Reader, logger *slog.Logger) ([]ElementSet, error) {
	scanner := bufio.NewScanner(r)

	var (
		sets  []ElementSet
		name  string
		line1 string
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "1 "):
			line1 = line
		case strings.HasPrefix(line, "2 "):
			if line1 == "" {
				logger.Warn("orbit line 2 without a matching line 1", "name", name)
				continue
			}
			set, err := assemble(name, line1, line)
			if err != nil {
				logger.Warn("skipping damaged element set", "name", name, "error", err)
			} else {
				sets = append(sets, set)
			}
			name, line1 = "", ""
		default:
			// Any other line names the entry that follows it.
			name = strings.TrimSpace(line)
			line1 = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element sets: %w", err)
	}

	return sets, nil
}

// assemble validates a pair of orbit lines. Both lines carry the catalog
// number in columns 3-7; a mismatch means the feed interleaved two entries
// and the pair cannot be trusted.
func assemble(name, line1, line2 string) (ElementSet, error) {
	n1, err := catalogNumberOf(line1)
	if err != nil {
		return ElementSet{}, err
	}
	n2, err := catalogNumberOf(line2)
	if err != nil {
		return ElementSet{}, err
	}
	if n1 != n2 {
		return ElementSet{}, fmt.Errorf("catalog number mismatch between orbit lines: %d vs %d", n1, n2)
	}
	if name == "" {
		name = fmt.Sprintf("OBJECT %d", n1)
	}
	return ElementSet{CatalogNumber: n1, Name: name, Line1: line1, Line2: line2}, nil
}

func catalogNumberOf(line string) (int, error) {
	if len(line) < 7 {
		return 0, fmt.Errorf("orbit line too short: %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[2:7]))
	if err != nil {
		return 0, fmt.Errorf("unreadable catalog number in %q: %w", line[2:7], err)
	}
	return n, nil
}
