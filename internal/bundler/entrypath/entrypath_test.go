package entrypath

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"blah.tar.gz", ".gz"},
		{"file_with_no_extension", ""},
		{"/tmp/dir1/dir2/blah.txt", ".txt"},
		{".hidden", ""},
		{"/tmp/.hidden", ""},
		{"/tmp/dir.d/noext", ""},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Extension(tc.in), "input: %q", tc.in)
	}
}

func TestEntryPath_StripsExclusionsAndSeparator(t *testing.T) {
	n := New([]string{"/mnt/fileshare", "/mnt/public"})

	tests := []struct {
		in   string
		want string
	}{
		{"/mnt/fileshare/data/a.bin", "data/a.bin"},
		{"/mnt/public/data/b.bin", "data/b.bin"},
		{"/other/data/c.bin", "other/data/c.bin"},
		{"file:///mnt/fileshare/data/a.bin", "data/a.bin"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, n.EntryPath(tc.in), "input: %q", tc.in)
	}
}

func TestEntryPath_StripsOnlyOneOccurrence(t *testing.T) {
	n := New([]string{"/mnt"})
	assert.Equal(t, "mnt/data/a.bin", n.EntryPath("/mnt/mnt/data/a.bin"))
}

func TestEntryPath_LengthLimitDropsLeftmostSegments(t *testing.T) {
	n := New(nil)

	long := "/abcd/efgh/ijkl/" +
		strings.Repeat("0123456789", 9) + ".txt"
	got := n.EntryPath(long)

	assert.LessOrEqual(t, len(got), LengthLimit)
	assert.True(t, strings.HasSuffix(got, ".txt"))
	// leftmost segments dropped first, so the tail survives intact
	assert.True(t, strings.HasSuffix(long, got))
}

func TestEntryPath_TruncatesFilenamePreservingExtension(t *testing.T) {
	n := New(nil)

	name := strings.Repeat("a", 133) + ".bin"
	got := n.EntryPath("/" + name)

	assert.Equal(t, LengthLimit, len(got))
	assert.True(t, strings.HasSuffix(got, ".bin"))
}

func TestEntryPath_ExactLimitWithExtension(t *testing.T) {
	n := New(nil)

	// normalized length 137 with a .bin extension
	in := "/" + strings.Repeat("x", 133) + ".bin"
	got := n.EntryPath(in)
	assert.Equal(t, 100, len(got))
	assert.True(t, strings.HasSuffix(got, ".bin"))
}

func TestEntryPath_Idempotent(t *testing.T) {
	n := New([]string{"/mnt/fileshare"})

	inputs := []string{
		"/mnt/fileshare/data/a.bin",
		"/abcd/efgh/" + strings.Repeat("0123456789", 12) + ".txt",
		strings.Repeat("z", 140) + ".dat",
		"plain.txt",
	}
	for _, in := range inputs {
		once := n.EntryPath(in)
		twice := n.EntryPath(once)
		assert.Equal(t, once, twice, "input: %q", in)
	}
}

func TestEntryPathRelative(t *testing.T) {
	n := New(nil)

	got := n.EntryPathRelative(
		"file:///data/search/sub/leaf.txt", "/data/search", "results")
	assert.Equal(t, "results/sub/leaf.txt", got)

	got = n.EntryPathRelative(
		"/data/search/sub/leaf.txt", "/data/search", "")
	assert.Equal(t, "sub/leaf.txt", got)

	got = n.EntryPathRelative(
		"/data/search/sub/leaf.txt", "", "pre/")
	assert.Equal(t, "pre/data/search/sub/leaf.txt", got)
}

func TestBaseNameEntry(t *testing.T) {
	n := New(nil)

	assert.Equal(t, "a.bin", n.BaseNameEntry("/data/deep/a.bin", ""))
	assert.Equal(t, "out/a.bin", n.BaseNameEntry("/data/deep/a.bin", "out"))
	assert.Equal(t, "out/a.bin", n.BaseNameEntry("/data/deep/a.bin", "out/"))
}

func TestEntryPath_Empty(t *testing.T) {
	n := New(nil)
	assert.Equal(t, "", n.EntryPath(""))
}
