package codec

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/fsearchd/fscore/internal/entry"
	"github.com/fsearchd/fscore/internal/ferrors"
)

func readSnapshot(r *bufio.Reader) (*Snapshot, error) {
	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading magic")
	}
	if string(magicBuf) != magic {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseMagicMismatch, "magic "+string(magicBuf))
	}

	major, err := readU8(r)
	if err != nil {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading major_ver")
	}
	minor, err := readU8(r)
	if err != nil {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading minor_ver")
	}
	if major != majorVer {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseVersionMismatch, "major_ver mismatch")
	}
	if minor > minorVer {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseVersionMismatch, "minor_ver exceeds compile-time minor")
	}

	flagsRaw, err := readU64(r)
	if err != nil {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading flags")
	}
	flags := entry.Flag(flagsRaw)

	numFolders, err := readU32(r)
	if err != nil {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading num_folders")
	}
	numFiles, err := readU32(r)
	if err != nil {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading num_files")
	}

	if _, err := readU64(r); err != nil { // FOLDER_BLOCK_SIZE, unused on read
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading folder block size")
	}
	if _, err := readU64(r); err != nil { // FILE_BLOCK_SIZE, unused on read
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading file block size")
	}
	if _, err := readU32(r); err != nil { // NUM_INDEXES, reserved
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading num_indexes")
	}
	if _, err := readU32(r); err != nil { // NUM_EXCLUDES, reserved
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading num_excludes")
	}

	folders := make([]*entry.Entry, numFolders)
	for i := range folders {
		folders[i] = &entry.Entry{Kind: entry.KindFolder, Idx: uint32(i)}
	}

	var prevName string
	parentIdx := make([]uint32, numFolders)
	for i := uint32(0); i < numFolders; i++ {
		dbIndex, err := readU16(r)
		if err != nil {
			return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading folder db_index")
		}
		name, size, mtime, err := readSuper(r, prevName, flags)
		if err != nil {
			return nil, err
		}
		pIdx, err := readU32(r)
		if err != nil {
			return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading folder parent_idx")
		}

		folders[i].DBIndex = dbIndex
		folders[i].Name = name
		folders[i].Size = size
		folders[i].MTime = mtime
		parentIdx[i] = pIdx
		prevName = name
	}
	for i := uint32(0); i < numFolders; i++ {
		if parentIdx[i] == i {
			folders[i].Parent = nil
			continue
		}
		if parentIdx[i] >= numFolders {
			return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "folder parent_idx out of range")
		}
		folders[i].Parent = folders[parentIdx[i]]
		folders[i].Parent.Children = append(folders[i].Parent.Children, folders[i])
	}

	files := make([]*entry.Entry, numFiles)
	prevName = ""
	for i := uint32(0); i < numFiles; i++ {
		name, size, mtime, err := readSuper(r, prevName, flags)
		if err != nil {
			return nil, err
		}
		pIdx, err := readU32(r)
		if err != nil {
			return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading file parent_idx")
		}
		if pIdx >= numFolders {
			return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "file parent_idx out of range")
		}

		f := &entry.Entry{
			Kind:   entry.KindFile,
			Idx:    i,
			Name:   name,
			Size:   size,
			MTime:  mtime,
			Parent: folders[pIdx],
		}
		folders[pIdx].Children = append(folders[pIdx].Children, f)
		files[i] = f
		prevName = name
	}

	numArrays, err := readU32(r)
	if err != nil {
		return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading num_sorted_arrays")
	}

	arrays := make(map[entry.SortProperty]Permutation, numArrays)
	for i := uint32(0); i < numArrays; i++ {
		sortID, err := readU32(r)
		if err != nil {
			return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading sort_id")
		}
		if sortID == 0 || int(sortID) >= entry.NumSortProperties() {
			return nil, ferrors.NewCodecError(ferrors.CodecCauseUnknownSortID, "sort_id out of range")
		}

		folderPerm := make([]uint32, numFolders)
		for j := range folderPerm {
			v, err := readU32(r)
			if err != nil {
				return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading folder_perm")
			}
			folderPerm[j] = v
		}
		filePerm := make([]uint32, numFiles)
		for j := range filePerm {
			v, err := readU32(r)
			if err != nil {
				return nil, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading file_perm")
			}
			filePerm[j] = v
		}

		arrays[entry.SortProperty(sortID)] = Permutation{FolderPerm: folderPerm, FilePerm: filePerm}
	}

	return &Snapshot{
		Flags:        flags,
		Folders:      folders,
		Files:        files,
		SortedArrays: arrays,
	}, nil
}

// readSuper decodes the name-delta header plus optional SIZE/MTIME
// fields written by writeSuper.
func readSuper(r *bufio.Reader, prevName string, flags entry.Flag) (name string, size, mtime uint64, err error) {
	common, err := readU8(r)
	if err != nil {
		return "", 0, 0, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading name_offset")
	}
	suffixLen, err := readU8(r)
	if err != nil {
		return "", 0, 0, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading name_len")
	}
	if int(common)+int(suffixLen) > 255 {
		return "", 0, 0, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "name_offset + name_len exceeds 255")
	}

	suffix := make([]byte, suffixLen)
	if _, err := io.ReadFull(r, suffix); err != nil {
		return "", 0, 0, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading name_bytes")
	}

	if int(common) > len(prevName) {
		return "", 0, 0, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "name_offset exceeds previous name length")
	}
	name = prevName[:common] + string(suffix)

	if flags.Has(entry.FlagSize) {
		size, err = readU64(r)
		if err != nil {
			return "", 0, 0, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading size")
		}
	}
	if flags.Has(entry.FlagMTime) {
		mtime, err = readU64(r)
		if err != nil {
			return "", 0, 0, ferrors.NewCodecError(ferrors.CodecCauseTruncated, "reading mtime")
		}
	}
	return name, size, mtime, nil
}

func readU8(r *bufio.Reader) (uint8, error) { return r.ReadByte() }

func readU16(r *bufio.Reader) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func readU32(r *bufio.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func readU64(r *bufio.Reader) (uint64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}
