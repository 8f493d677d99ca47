package entry

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// nameCollator performs the locale-aware Unicode collation §4.1 requires
// for NAME comparisons. A collate.Collator keeps its comparison iterators
// inside the struct, so the shared instance is guarded by
// nameCollatorMu.
var (
	nameCollator   = collate.New(language.Und, collate.IgnoreCase)
	nameCollatorMu sync.Mutex
)

// CompareNames performs the collation §4.1 specifies for the NAME
// property: locale-aware Unicode collation as provided by the host
// environment. It is safe for concurrent use.
func CompareNames(a, b string) int {
	nameCollatorMu.Lock()
	defer nameCollatorMu.Unlock()
	return nameCollator.CompareString(a, b)
}

// Compare orders two entries by property p, falling back to secondary
// when p leaves them tied, and finally to pointer identity so that
// ordering is total and Container invariants ("no duplicate by
// identity", "predecessor <= successor") always hold.
//
// PATH comparisons traverse parent chains lazily (only when p or
// secondary is SortPath and names/sizes/mtimes did not already decide
// the order), matching §4.1's "path comparisons traverse parent chains
// lazily".
func Compare(a, b *Entry, p, secondary SortProperty) int {
	if c := compareBy(a, b, p); c != 0 {
		return c
	}
	if secondary != SortNone {
		if c := compareBy(a, b, secondary); c != 0 {
			return c
		}
	}
	return compareIdentity(a, b)
}

func compareBy(a, b *Entry, p SortProperty) int {
	switch p {
	case SortName:
		return CompareNames(a.Name, b.Name)
	case SortPath:
		return CompareNames(a.Path(), b.Path())
	case SortSize:
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		default:
			return 0
		}
	case SortMTime:
		switch {
		case a.MTime < b.MTime:
			return -1
		case a.MTime > b.MTime:
			return 1
		default:
			return 0
		}
	case SortExtension:
		return CompareNames(a.Extension(), b.Extension())
	default:
		return 0
	}
}

// compareIdentity breaks ties deterministically using each entry's Idx
// within its Index and then DBIndex, which together are unique for any
// two distinct live entries of the same kind within one Store. This
// gives Container a total order without relying on map/pointer
// iteration order, which Go does not guarantee to be stable.
func compareIdentity(a, b *Entry) int {
	if a == b {
		return 0
	}
	if a.DBIndex != b.DBIndex {
		if a.DBIndex < b.DBIndex {
			return -1
		}
		return 1
	}
	if a.Idx != b.Idx {
		if a.Idx < b.Idx {
			return -1
		}
		return 1
	}
	// Same (DBIndex, Idx) but different pointers cannot happen for live
	// entries from a single Index's pool; fall back to pointer value so
	// Compare is still a strict weak order rather than panicking.
	return comparePointers(a, b)
}
