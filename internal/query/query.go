// Package query implements the default Query Matcher of §6: given a
// query string and per-search flags, it decides whether one Entry is
// a match, and fans the match test out across a worker pool for a
// whole Container (§4.5's "Search" operation work item).
package query

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fsearchd/fscore/internal/entry"
)

// Mode selects how Pattern is interpreted.
type Mode int

const (
	ModeSubstring Mode = iota
	ModeGlob
)

// Query is one parsed search request.
type Query struct {
	Pattern       string
	Mode          Mode
	CaseSensitive bool
	MatchPath     bool // match against the full path, not just the name
}

// Matcher decides whether a single Entry satisfies a Query.
type Matcher interface {
	Match(q Query, e *entry.Entry) bool
}

// DefaultMatcher implements substring and glob matching over an
// Entry's name or full path.
type DefaultMatcher struct{}

var _ Matcher = DefaultMatcher{}

func (DefaultMatcher) Match(q Query, e *entry.Entry) bool {
	subject := e.Name
	if q.MatchPath {
		subject = e.Path()
	}

	pattern := q.Pattern
	if !q.CaseSensitive {
		subject = strings.ToLower(subject)
		pattern = strings.ToLower(pattern)
	}

	switch q.Mode {
	case ModeGlob:
		ok, err := filepath.Match(pattern, subject)
		return err == nil && ok
	default:
		return strings.Contains(subject, pattern)
	}
}

// FilterContainer runs q across every entry in entries concurrently,
// using a bounded worker pool (GOMAXPROCS workers), and returns the
// matching entries in their original relative order. Cancellation via
// ctx is honored between chunks, matching §5's "checked at ... search
// iteration boundaries".
func FilterContainer(ctx context.Context, m Matcher, q Query, entries []*entry.Entry) ([]*entry.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	chunkSize := (len(entries) + workers - 1) / workers
	results := make([][]*entry.Entry, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		start := w * chunkSize
		if start >= len(entries) {
			continue
		}
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}

		g.Go(func() error {
			var matched []*entry.Entry
			for i, e := range entries[start:end] {
				if i%4096 == 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
				}
				if m.Match(q, e) {
					matched = append(matched, e)
				}
			}
			results[w] = matched
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*entry.Entry
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
