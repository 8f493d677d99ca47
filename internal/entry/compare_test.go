package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"report.pdf", "pdf"},
		{"archive.tar.gz", "gz"},
		{"README", ""},
		{".bashrc", ""},
		{"trailing.", ""},
	}

	for _, c := range cases {
		e := &Entry{Name: c.name}
		assert.Equal(t, c.want, e.Extension(), c.name)
	}
}

func TestPathReconstruction(t *testing.T) {
	root := &Entry{Name: "a", Kind: KindFolder}
	child := &Entry{Name: "x", Kind: KindFile, Parent: root}

	assert.Equal(t, "a", root.Path())
	assert.Equal(t, "a/x", child.Path())
}

func TestCompareBySizeThenIdentity(t *testing.T) {
	a := &Entry{Name: "b", Size: 10, Idx: 0}
	b := &Entry{Name: "a", Size: 20, Idx: 1}

	assert.Less(t, Compare(a, b, SortSize, SortNone), 0)
	assert.Greater(t, Compare(b, a, SortSize, SortNone), 0)
}

func TestCompareNameTieBreaksBySecondaryThenIdentity(t *testing.T) {
	a := &Entry{Name: "same", Size: 5, Idx: 0}
	b := &Entry{Name: "same", Size: 5, Idx: 1}

	// No secondary: ties fall through to identity (Idx order here).
	assert.Less(t, Compare(a, b, SortName, SortNone), 0)

	c := &Entry{Name: "same", Size: 1, Idx: 5}
	d := &Entry{Name: "same", Size: 2, Idx: 0}
	assert.Less(t, Compare(c, d, SortName, SortSize), 0)
}
