// Package container implements the Entries Container family described
// in §4.1: an ordered sequence of entries of one kind, under one
// primary (and optional secondary) sort property, supporting
// sub-linear insert, identity-based steal, and positional lookup.
//
// The representation is "a tree of sorted runs" as the spec allows: a
// flat, ordered list of bounded-size segments, each internally a sorted
// slice. Segments keep insert and positional lookup proportional to
// the segment count rather than the total entry count, and splitting
// an over-full segment keeps that count bounded as the container
// grows.
package container

import (
	"sort"

	"github.com/fsearchd/fscore/internal/entry"
)

// segmentCapacity bounds how many entries a single segment holds
// before it is split in two. Chosen to keep insert/positional-lookup
// work per operation small without fragmenting into too many segments.
const segmentCapacity = 512

type segment struct {
	items []*entry.Entry
}

// Container is an ordered sequence of entries of one kind (file or
// folder), under a primary sort property and an optional secondary
// tie-breaker. A Container's (kind, primary, secondary) schema is fixed
// at construction; it is "immutable in schema" per §4.1.
type Container struct {
	kind      entry.Kind
	primary   entry.SortProperty
	secondary entry.SortProperty

	segments []*segment
	count    int
}

// New builds an empty Container for the given kind and sort schema.
func New(kind entry.Kind, primary, secondary entry.SortProperty) *Container {
	return &Container{
		kind:      kind,
		primary:   primary,
		secondary: secondary,
		segments:  []*segment{{}},
	}
}

// Kind returns the entry kind this container holds.
func (c *Container) Kind() entry.Kind { return c.kind }

// Primary returns the primary sort property.
func (c *Container) Primary() entry.SortProperty { return c.primary }

// Secondary returns the secondary (tie-breaking) sort property.
func (c *Container) Secondary() entry.SortProperty { return c.secondary }

// NumEntries returns the exact count of entries currently held.
func (c *Container) NumEntries() int { return c.count }

func (c *Container) less(a, b *entry.Entry) bool {
	return entry.Compare(a, b, c.primary, c.secondary) < 0
}

// segmentFor returns the index of the segment that would hold e given
// the container's current segment boundaries (by each segment's last
// element), via binary search over segment boundaries.
func (c *Container) segmentFor(e *entry.Entry) int {
	return sort.Search(len(c.segments), func(i int) bool {
		seg := c.segments[i]
		if len(seg.items) == 0 {
			return true
		}
		return !c.less(seg.items[len(seg.items)-1], e)
	})
}

// Insert adds e to the container, maintaining the order invariant:
// entries are ordered by (primary, secondary, identity). e must be of
// the container's kind and must not already be present (by identity).
func (c *Container) Insert(e *entry.Entry) {
	if e.Kind != c.kind {
		panic("container: entry kind does not match container kind")
	}

	idx := c.segmentFor(e)
	if idx == len(c.segments) {
		idx = len(c.segments) - 1
	}
	seg := c.segments[idx]

	pos := sort.Search(len(seg.items), func(i int) bool {
		return !c.less(seg.items[i], e)
	})

	seg.items = append(seg.items, nil)
	copy(seg.items[pos+1:], seg.items[pos:])
	seg.items[pos] = e
	c.count++

	if len(seg.items) > segmentCapacity {
		c.splitSegment(idx)
	}
}

func (c *Container) splitSegment(idx int) {
	seg := c.segments[idx]
	mid := len(seg.items) / 2

	left := &segment{items: append([]*entry.Entry(nil), seg.items[:mid]...)}
	right := &segment{items: append([]*entry.Entry(nil), seg.items[mid:]...)}

	c.segments = append(c.segments, nil)
	copy(c.segments[idx+2:], c.segments[idx+1:])
	c.segments[idx] = left
	c.segments[idx+1] = right
}

// Steal locates e by identity and removes it without releasing its
// memory (ownership remains with the entry's Index pool). Returns
// false if e was not present.
func (c *Container) Steal(e *entry.Entry) bool {
	idx := c.segmentFor(e)
	for _, segIdx := range []int{idx - 1, idx} {
		if segIdx < 0 || segIdx >= len(c.segments) {
			continue
		}
		seg := c.segments[segIdx]
		for i, cur := range seg.items {
			if cur == e {
				seg.items = append(seg.items[:i], seg.items[i+1:]...)
				if len(seg.items) == 0 && len(c.segments) > 1 {
					c.segments = append(c.segments[:segIdx], c.segments[segIdx+1:]...)
				}
				c.count--
				return true
			}
		}
	}
	// Fallback: segmentFor's boundary search assumes monotone segment
	// boundaries, which always holds here, but a direct identity scan
	// guards against the edge case of an empty leading segment.
	for segIdx, seg := range c.segments {
		for i, cur := range seg.items {
			if cur == e {
				seg.items = append(seg.items[:i], seg.items[i+1:]...)
				if len(seg.items) == 0 && len(c.segments) > 1 {
					c.segments = append(c.segments[:segIdx], c.segments[segIdx+1:]...)
				}
				c.count--
				return true
			}
		}
	}
	return false
}

// GetEntry returns the entry at position i in sorted order, or nil if
// i is out of range.
func (c *Container) GetEntry(i int) *entry.Entry {
	if i < 0 || i >= c.count {
		return nil
	}
	for _, seg := range c.segments {
		if i < len(seg.items) {
			return seg.items[i]
		}
		i -= len(seg.items)
	}
	return nil
}

// Joined returns a flat, newly allocated slice of every entry in
// order. Used for serialisation and as search input.
func (c *Container) Joined() []*entry.Entry {
	out := make([]*entry.Entry, 0, c.count)
	for _, seg := range c.segments {
		out = append(out, seg.items...)
	}
	return out
}

// Containers exposes the internal segments as read-only slices,
// letting callers iterate without the allocation Joined incurs.
func (c *Container) Containers() [][]*entry.Entry {
	out := make([][]*entry.Entry, len(c.segments))
	for i, seg := range c.segments {
		out[i] = seg.items
	}
	return out
}

// Split returns a new Container holding the sub-range [from, to) of
// this container's order, sharing entry pointers (not copies) with the
// original. Used by Search to build per-view result containers from a
// Store container's joined sequence when pre-sorted input is already
// available.
func (c *Container) Split(from, to int) *Container {
	if from < 0 {
		from = 0
	}
	if to > c.count {
		to = c.count
	}
	out := New(c.kind, c.primary, c.secondary)
	if from >= to {
		return out
	}
	joined := c.Joined()[from:to]
	for _, e := range joined {
		out.appendSorted(e)
	}
	return out
}

// appendSorted appends e directly to the last segment assuming e sorts
// after everything already present; used when building a container
// from an already-ordered source (Join, bulk load) to avoid repeated
// binary search overhead per element.
func (c *Container) appendSorted(e *entry.Entry) {
	seg := c.segments[len(c.segments)-1]
	seg.items = append(seg.items, e)
	c.count++
	if len(seg.items) > segmentCapacity {
		c.splitSegment(len(c.segments) - 1)
	}
}

// BuildSorted constructs a Container from entries already sorted
// according to (primary, secondary, identity); used by Store start-up
// (§4.3 step 4) and by the codec loader, both of which have a
// canonical-order source and would otherwise pay binary-search cost
// insertion offers no benefit against.
func BuildSorted(kind entry.Kind, primary, secondary entry.SortProperty, sorted []*entry.Entry) *Container {
	c := New(kind, primary, secondary)
	for _, e := range sorted {
		c.appendSorted(e)
	}
	return c
}

// Join builds a new Container of the given kind and schema from the
// concatenation of parts, sorted by (primary, secondary, identity).
// Used when concatenating
// per-Index arrays during Store start-up before the aggregate is
// resorted into per-property containers.
func Join(kind entry.Kind, primary, secondary entry.SortProperty, parts ...[]*entry.Entry) *Container {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	all := make([]*entry.Entry, 0, total)
	for _, p := range parts {
		all = append(all, p...)
	}
	sort.Slice(all, func(i, j int) bool {
		return entry.Compare(all[i], all[j], primary, secondary) < 0
	})
	return BuildSorted(kind, primary, secondary, all)
}
