package index

import "os"

func pathIsDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

func statSizeAndMTime(path string) (size uint64, mtime uint64, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return uint64(fi.Size()), uint64(fi.ModTime().Unix()), nil
}
