package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aosc-dev/pvrepo/deb"
	"github.com/aosc-dev/pvrepo/internal/record"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Init(context.Background()))
	return st
}

func TestInsertAndListInventory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.UpsertRepo(ctx, "amd64/stable", "amd64", "stable/main", 0, "stable", "main", "amd64"))

	pkg := &record.Package{
		Name: "hello", Version: "1.0", Repo: "amd64/stable", Architecture: "amd64",
		Filename: "pool/stable/main/h/hello_1.0_amd64.deb", Size: 1024, Mtime: 1700000000,
		SHA256: "deadbeef", ComparableVersion: deb.ComparableKey("1.0"),
		Control: map[string]string{"Package": "hello", "Version": "1.0"},
	}
	require.NoError(t, tx.InsertPackage(ctx, pkg))
	require.NoError(t, tx.Commit())

	tx2, err := st.Begin(ctx)
	require.NoError(t, err)
	rows, err := tx2.ListInventory(ctx, "pool/stable/main/")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "hello", rows[0].Package)
	require.NoError(t, tx2.Rollback())
}

func TestLatestVersionAndEviction(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertRepo(ctx, "amd64/stable", "amd64", "stable/main", 0, "stable", "main", "amd64"))

	for _, v := range []string{"1.0", "1.1"} {
		pkg := &record.Package{
			Name: "hello", Version: v, Repo: "amd64/stable", Architecture: "amd64",
			Filename: "pool/stable/main/h/hello_" + v + "_amd64.deb", Size: 10, Mtime: 1,
			ComparableVersion: deb.ComparableKey(v),
			Control:           map[string]string{"Package": "hello", "Version": v},
		}
		require.NoError(t, tx.InsertPackage(ctx, pkg))
	}

	latest, ok, err := tx.LatestVersion(ctx, "hello", "amd64/stable")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1.1", latest)

	require.NoError(t, tx.EvictToDuplicate(ctx, "pool/stable/main/h/hello_1.0_amd64.deb"))
	require.NoError(t, tx.Commit())
}

// TestListReleaseReadsAlternateDpkgTables verifies the release generator's
// read queries also surface rows from the alternate dpkg_packages/
// dpkg_package_files input, alongside pv_packages/pv_package_files.
func TestListReleaseReadsAlternateDpkgTables(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertRepo(ctx, "amd64/stable", "amd64", "stable/main", 0, "stable", "main", "amd64"))
	pkg := &record.Package{
		Name: "hello", Version: "1.0", Repo: "amd64/stable", Architecture: "amd64",
		Filename: "pool/stable/main/h/hello_1.0_amd64.deb", Size: 1024, Mtime: 1700000000,
		SHA256: "deadbeef", ComparableVersion: deb.ComparableKey("1.0"),
		Control: map[string]string{"Package": "hello", "Version": "1.0"},
		Files:   []record.File{{Dir: "usr/bin", Base: "hello", Type: "reg"}},
	}
	require.NoError(t, tx.InsertPackage(ctx, pkg))
	require.NoError(t, tx.Commit())

	_, err = st.db.ExecContext(ctx, `INSERT INTO dpkg_packages
		(package, version, repo, architecture, filename, size, sha256, control)
		VALUES ('world','2.0','amd64/stable','amd64','pool/stable/main/w/world_2.0_amd64.deb',2048,'feedface',
		'{"Package":"world","Version":"2.0","Section":"utils"}')`)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `INSERT INTO dpkg_package_files
		(package, version, repo, dir, basename, ftype) VALUES ('world','2.0','amd64/stable','usr/bin','world','reg')`)
	require.NoError(t, err)

	pkgRows, err := st.ListReleasePackages(ctx, "pool/stable/main/")
	require.NoError(t, err)
	require.Len(t, pkgRows, 2)
	names := map[string]bool{}
	for _, r := range pkgRows {
		names[r.Package] = true
	}
	require.True(t, names["hello"])
	require.True(t, names["world"])

	fileRows, err := st.ListReleaseFiles(ctx, "pool/stable/main/")
	require.NoError(t, err)
	require.Len(t, fileRows, 2)
	var worldSection string
	for _, r := range fileRows {
		if r.Package == "world" {
			worldSection = r.Section
		}
	}
	require.Equal(t, "utils", worldSection)
}
