package subscribers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Value is the element types a Set can hold.
type Value interface {
	int64 | string
}

// Set is a durable set of values persisted one per line in a text file. Add
// and Remove are idempotent; mutations rewrite the file in full.
type Set[T Value] struct {
	path string

	mu      sync.Mutex
	members map[T]struct{}
}

// Open loads the set persisted at path. A missing file yields an empty set
// and creates the file, so a fresh deployment starts clean.
func Open[T Value](path string) (*Set[T], error) {
	s := &Set[T]{
		path:    path,
		members: make(map[T]struct{}),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		if err := s.write(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := parseValue[T](line)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		s.members[v] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return s, nil
}

// Add inserts v. Adding an existing member changes nothing. A persistence
// failure is returned to the caller but the in-memory set stays mutated.
func (s *Set[T]) Add(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[v]; ok {
		return nil
	}
	s.members[v] = struct{}{}
	return s.write()
}

// Remove deletes v. Removing a non-member changes nothing and is never an
// error.
func (s *Set[T]) Remove(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[v]; !ok {
		return nil
	}
	delete(s.members, v)
	return s.write()
}

// Contains reports whether v is a member.
func (s *Set[T]) Contains(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[v]
	return ok
}

// Members returns all members in a stable order.
func (s *Set[T]) Members() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]T, 0, len(s.members))
	for v := range s.members {
		members = append(members, v)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// Len returns the number of members.
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.members)
}

// write rewrites the backing file in full. Callers hold the mutex.
func (s *Set[T]) write() error {
	var b strings.Builder
	for v := range s.members {
		fmt.Fprintf(&b, "%v\n", v)
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

func parseValue[T Value](line string) (T, error) {
	var zero T
	switch any(zero).(type) {
	case int64:
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return zero, err
		}
		return any(n).(T), nil
	default:
		return any(line).(T), nil
	}
}
