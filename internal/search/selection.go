package search

import (
	"github.com/fsearchd/fscore/internal/container"
	"github.com/fsearchd/fscore/internal/entry"
)

// SelectionOp enumerates the view selection mutations §4.5 names.
type SelectionOp int

const (
	SelectClear SelectionOp = iota
	SelectAll
	SelectInvert
	Select
	SelectToggle
	SelectRange
	ToggleRange
)

// ModifySelection applies op to v. idx (and idx2 for the *Range
// variants) are view-visible indices, resolved via visibleIndex so
// direction and the folders-first ordering are honored uniformly.
func ModifySelection(v *View, op SelectionOp, idx, idx2 int) error {
	switch op {
	case SelectClear:
		clearSelection(v.fileSelection)
		clearSelection(v.folderSelection)
		return nil

	case SelectAll:
		for i := 0; i < v.folders.NumEntries(); i++ {
			v.folderSelection[v.folders.GetEntry(i)] = true
		}
		for i := 0; i < v.files.NumEntries(); i++ {
			v.fileSelection[v.files.GetEntry(i)] = true
		}
		return nil

	case SelectInvert:
		invertAll(v.folders, v.folderSelection)
		invertAll(v.files, v.fileSelection)
		return nil

	case Select:
		return setRange(v, idx, idx, true)

	case SelectToggle:
		return toggleRange(v, idx, idx)

	case SelectRange:
		lo, hi := idx, idx2
		if lo > hi {
			lo, hi = hi, lo
		}
		return setRange(v, lo, hi, true)

	case ToggleRange:
		lo, hi := idx, idx2
		if lo > hi {
			lo, hi = hi, lo
		}
		return toggleRange(v, lo, hi)

	default:
		return nil
	}
}

func clearSelection(m map[*entry.Entry]bool) {
	for k := range m {
		delete(m, k)
	}
}

func invertAll(c *container.Container, sel map[*entry.Entry]bool) {
	for i := 0; i < c.NumEntries(); i++ {
		e := c.GetEntry(i)
		sel[e] = !sel[e]
	}
}

func setRange(v *View, lo, hi int, value bool) error {
	for i := lo; i <= hi; i++ {
		e, err := EntryForVisibleIndex(v, i)
		if err != nil {
			return err
		}
		if e.Kind == entry.KindFolder {
			v.folderSelection[e] = value
		} else {
			v.fileSelection[e] = value
		}
	}
	return nil
}

func toggleRange(v *View, lo, hi int) error {
	for i := lo; i <= hi; i++ {
		e, err := EntryForVisibleIndex(v, i)
		if err != nil {
			return err
		}
		if e.Kind == entry.KindFolder {
			v.folderSelection[e] = !v.folderSelection[e]
		} else {
			v.fileSelection[e] = !v.fileSelection[e]
		}
	}
	return nil
}
