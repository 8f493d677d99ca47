// Package codec implements the Binary Snapshot Codec of §4.4: a
// little-endian, packed, delta-compressed encoding of a full Store
// snapshot, plus the atomic save/load discipline of §4.4 and §7.
package codec

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/ferrors"
)

const (
	magic      = "FSDB"
	majorVer   = 1
	minorVer   = 0
	maxNameLen = 255
)

// Snapshot is the codec's in-memory view of a Store: the flags and the
// NAME-ordered folder/file arrays, plus any additional sort
// permutations to persist alongside them.
type Snapshot struct {
	Flags   entry.Flag
	Folders []*entry.Entry // in NAME order; not reordered, so a parent may follow its child
	Files   []*entry.Entry // in NAME order

	// SortedArrays maps a SortProperty (any but SortNone; the Store also
	// writes NAME, as the identity permutation) to the permutation of
	// Folders/Files indices under that property, exactly as
	// SORTED_ARRAYS_SECTION requires.
	SortedArrays map[entry.SortProperty]Permutation
}

// Permutation is one persisted sort order: the index, into the
// NAME-order Folders/Files arrays, that the corresponding property
// order visits entries in.
type Permutation struct {
	FolderPerm []uint32
	FilePerm   []uint32
}

// Save atomically writes snap to path: write to path+".tmp" under an
// advisory exclusive lock, back-patch the block-size fields, then
// rename over path. On any error the temp file is removed and the
// error returned; path is left untouched.
func Save(path string, snap *Snapshot) (err error) {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err != nil {
			_ = os.Remove(tmp)
			return
		}
		if cerr != nil {
			err = cerr
			_ = os.Remove(tmp)
		}
	}()

	if lockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); lockErr != nil {
		return &ferrors.CodecError{Cause: ferrors.CodecCauseUnknown, Msg: "lock temp file: " + lockErr.Error()}
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if err = writeSnapshot(f, snap); err != nil {
		return err
	}

	if err = os.Rename(tmp, path); err != nil {
		return err
	}
	return nil
}

// Load atomically reads path: opens under an advisory exclusive lock
// (failing fast if another process holds it), parses the header,
// folder block, file block, and sorted-array section.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if lockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); lockErr != nil {
		return nil, &ferrors.CodecError{Cause: ferrors.CodecCauseUnknown, Msg: "file held by another process: " + lockErr.Error()}
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return readSnapshot(bufio.NewReader(f))
}

func writeSnapshot(f *os.File, snap *Snapshot) error {
	w := bufio.NewWriter(f)

	if _, err := w.WriteString(magic); err != nil {
		return err
	}
	if err := writeU8(w, majorVer); err != nil {
		return err
	}
	if err := writeU8(w, minorVer); err != nil {
		return err
	}
	if err := writeU64(w, uint64(snap.Flags)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(snap.Folders))); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(snap.Files))); err != nil {
		return err
	}

	// Block sizes are back-patched: write placeholders, remember the
	// offsets, then seek back once the blocks are encoded.
	if err := w.Flush(); err != nil {
		return err
	}
	folderSizeOff, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := writeU64(w, 0); err != nil {
		return err
	}
	if err := writeU64(w, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil { // NUM_INDEXES, reserved
		return err
	}
	if err := writeU32(w, 0); err != nil { // NUM_EXCLUDES, reserved
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	folderBlockStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	idxOf := make(map[*entry.Entry]uint32, len(snap.Folders))
	for i, fo := range snap.Folders {
		idxOf[fo] = uint32(i)
	}

	if err := encodeFolders(w, snap.Folders, snap.Flags, idxOf); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	folderBlockEnd, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if err := encodeFiles(w, snap.Files, snap.Flags, idxOf); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fileBlockEnd, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if err := writeSortedArrays(w, snap.SortedArrays); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	folderBlockSize := uint64(folderBlockEnd - folderBlockStart)
	fileBlockSize := uint64(fileBlockEnd - folderBlockEnd)

	if _, err := f.Seek(folderSizeOff, io.SeekStart); err != nil {
		return err
	}
	patch := bufio.NewWriter(f)
	if err := writeU64(patch, folderBlockSize); err != nil {
		return err
	}
	if err := writeU64(patch, fileBlockSize); err != nil {
		return err
	}
	if err := patch.Flush(); err != nil {
		return err
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

// encodeFolders writes folders in the NAME order they're given, with
// each entry's parent_idx resolved through idxOf — the position of
// that parent within this same NAME-order Folders array, not its
// scan-assigned entry.Idx (the two only coincide by accident).
func encodeFolders(w io.Writer, folders []*entry.Entry, flags entry.Flag, idxOf map[*entry.Entry]uint32) error {
	var prevName string
	for _, f := range folders {
		if err := writeU16(w, f.DBIndex); err != nil {
			return err
		}
		if err := writeSuper(w, f, prevName, flags); err != nil {
			return err
		}
		prevName = f.Name

		parentIdx := idxOf[f]
		if f.Parent != nil {
			if pi, ok := idxOf[f.Parent]; ok {
				parentIdx = pi
			}
		}
		if err := writeU32(w, parentIdx); err != nil {
			return err
		}
	}
	return nil
}

// encodeFiles writes each file's parent_idx resolved through idxOf,
// the same NAME-order folder position map encodeFolders uses — the
// loader reads a file's parent_idx as an index into the NAME-order
// Folders array, so a file's parent must be looked up there too,
// never its parent's scan-assigned entry.Idx.
func encodeFiles(w io.Writer, files []*entry.Entry, flags entry.Flag, idxOf map[*entry.Entry]uint32) error {
	var prevName string
	for _, fl := range files {
		if err := writeSuper(w, fl, prevName, flags); err != nil {
			return err
		}
		prevName = fl.Name

		var parentIdx uint32
		if fl.Parent != nil {
			parentIdx = idxOf[fl.Parent]
		}
		if err := writeU32(w, parentIdx); err != nil {
			return err
		}
	}
	return nil
}

// writeSuper encodes the name-delta header plus optional SIZE/MTIME
// fields, per §4.4's "super" layout.
func writeSuper(w io.Writer, e *entry.Entry, prevName string, flags entry.Flag) error {
	name := e.Name
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	common := commonPrefixLen(prevName, name)
	if common > 255 {
		common = 255
	}
	suffix := name[common:]
	if common+len(suffix) > 255 {
		suffix = suffix[:255-common]
	}

	if err := writeU8(w, uint8(common)); err != nil {
		return err
	}
	if err := writeU8(w, uint8(len(suffix))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, suffix); err != nil {
		return err
	}

	if flags.Has(entry.FlagSize) {
		if err := writeU64(w, e.Size); err != nil {
			return err
		}
	}
	if flags.Has(entry.FlagMTime) {
		if err := writeU64(w, e.MTime); err != nil {
			return err
		}
	}
	return nil
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func writeSortedArrays(w io.Writer, arrays map[entry.SortProperty]Permutation) error {
	if err := writeU32(w, uint32(len(arrays))); err != nil {
		return err
	}
	for sortID, perm := range arrays {
		if err := writeU32(w, uint32(sortID)); err != nil {
			return err
		}
		for _, v := range perm.FolderPerm {
			if err := writeU32(w, v); err != nil {
				return err
			}
		}
		for _, v := range perm.FilePerm {
			if err := writeU32(w, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeU8(w io.Writer, v uint8) error  { return writeBytes(w, []byte{v}) }
func writeU16(w io.Writer, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return writeBytes(w, buf)
}
func writeU32(w io.Writer, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return writeBytes(w, buf)
}
func writeU64(w io.Writer, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return writeBytes(w, buf)
}
func writeBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}
