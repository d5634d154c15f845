package hosts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// Set is a collection of unique host identifiers (IPv4 or hostname).
// Hosts are not validated; a malformed one simply fails to connect.
type Set map[string]struct{}

// FromLines trims each line and collapses duplicates.
// Blank lines are dropped instead of becoming an empty-string host.
func FromLines(lines []string) Set {
	s := make(Set, len(lines))
	for _, l := range lines {
		h := strings.TrimSpace(l)
		if h == "" {
			continue
		}
		s[h] = struct{}{}
	}
	return s
}

// Load reads one host per line from r.
func Load(r io.Reader) (Set, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read hosts: %w", err)
	}
	return FromLines(lines), nil
}

// LoadFile opens path and loads it as a host list.
func LoadFile(path string) (set Set, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hosts file: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	return Load(f)
}

func (s Set) Contains(h string) bool {
	_, ok := s[h]
	return ok
}

func (s Set) Len() int { return len(s) }

// Sorted returns the hosts in lexical order. Never nil.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
