package entry

import "unsafe"

// comparePointers gives a total, if arbitrary, order over two distinct
// Entry pointers. It is only reached when two entries share both
// DBIndex and Idx, which should not happen for live entries but is
// tolerated rather than panicking so Compare remains a total order
// under all inputs.
func comparePointers(a, b *Entry) int {
	pa := uintptr(unsafe.Pointer(a))
	pb := uintptr(unsafe.Pointer(b))
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}
