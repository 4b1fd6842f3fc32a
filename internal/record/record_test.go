package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aosc-dev/pvrepo/deb"
	"github.com/aosc-dev/pvrepo/internal/scanner"
)

func TestBuildPopulatesRecord(t *testing.T) {
	res := &scanner.Result{
		Control: map[string]string{
			"Package":      "hello",
			"Version":      "1.0",
			"Architecture": "amd64",
			"Section":      "utils",
			"Depends":      "libc6 (>= 2.15)",
		},
		HashValue: []byte{0xde, 0xad, 0xbe, 0xef},
		Time:      1700000000,
		SOProvide: []string{"libhello.so.1.0"},
		SODepend:  []string{"libc.so.6"},
		Files: []scanner.File{
			{Path: "/usr/bin/hello", Size: 1024, Type: 0o100000, Perm: 0o755},
		},
	}

	p, err := Build("/base/pool/stable/main/h/hello_1.0_amd64.deb", "pool/stable/main/h/hello_1.0_amd64.deb", 2048, 1700000001, res)
	require.NoError(t, err)

	require.Equal(t, "hello", p.Name)
	require.Equal(t, "1.0", p.Version)
	require.Equal(t, "amd64", p.Architecture)
	require.Equal(t, "deadbeef", p.SHA256)
	require.Equal(t, int64(1700000000), p.DebTime)
	require.False(t, p.Degraded)

	require.Len(t, p.Dependencies, 1)
	require.Equal(t, "libc6 (>= 2.15)", p.Dependencies[0].Value)

	require.Len(t, p.SharedObjects, 2)
	require.Len(t, p.Files, 1)
	require.Equal(t, "usr/bin", p.Files[0].Dir)
	require.Equal(t, "hello", p.Files[0].Base)
	require.Equal(t, deb.FileTypeRegular, p.Files[0].Type)
	require.Equal(t, 0o755, p.Files[0].Perm)
}

func TestBuildDegradedParsesFilename(t *testing.T) {
	p, err := BuildDegraded("/nonexistent/hello_1.0_amd64.deb", "pool/stable/main/h/hello_1.0_amd64.deb", 2048, 1700000001)
	require.NoError(t, err)
	require.Equal(t, "hello", p.Name)
	require.Equal(t, "1.0", p.Version)
	require.Equal(t, "amd64", p.Architecture)
	require.True(t, p.Degraded)
	require.Empty(t, p.SHA256) // file does not exist, hashing silently skipped
}

func TestSplitSoname(t *testing.T) {
	stem, suffix := SplitSoname("libfoo.so.1.2")
	require.Equal(t, "libfoo.so", stem)
	require.Equal(t, ".1.2", suffix)

	stem, suffix = SplitSoname("libbar.so")
	require.Equal(t, "libbar.so", stem)
	require.Equal(t, "", suffix)
}

func TestNormalizePath(t *testing.T) {
	dir, base := NormalizePath("usr/bin/../lib/foo.so")
	require.Equal(t, "usr/lib", dir)
	require.Equal(t, "foo.so", base)
}

func TestRepoIdentity(t *testing.T) {
	realname, repo := RepoIdentity("stable", "main", "amd64")
	require.Equal(t, "amd64", realname)
	require.Equal(t, "amd64/stable", repo)

	realname, repo = RepoIdentity("stable", "main", "all")
	require.Equal(t, "noarch", realname)
	require.Equal(t, "noarch/stable", repo)

	realname, repo = RepoIdentity("stable", "contrib", "amd64")
	require.Equal(t, "contrib-amd64", realname)
	require.Equal(t, "contrib-amd64/stable", repo)
}
