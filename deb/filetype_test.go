package deb

import "testing"

func TestClassifyMode(t *testing.T) {
	cases := []struct {
		mode uint32
		want FileType
	}{
		{0o100644, FileTypeRegular},
		{0o040755, FileTypeDirectory},
		{0o120777, FileTypeSymlink},
		{0o020000, FileTypeCharDev},
		{0o060000, FileTypeBlockDev},
		{0o010000, FileTypeFIFO},
		{0o140000, FileTypeSocket},
	}
	for _, c := range cases {
		if got := ClassifyMode(c.mode); got != c.want {
			t.Errorf("ClassifyMode(%o) = %q, want %q", c.mode, got, c.want)
		}
	}
}

func TestClassifyModeUnknownStoresNumericForm(t *testing.T) {
	// 0o170000 has all four file-type bits set and matches none of the known
	// POSIX file types, so it falls back to its decimal string form.
	const unknownMode = 0o170644
	want := FileType("61440")
	if got := ClassifyMode(unknownMode); got != want {
		t.Errorf("ClassifyMode(%o) = %q, want %q", unknownMode, got, want)
	}
}
