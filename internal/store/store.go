// Package store owns the relational schema and every query the reconciler
// and release generator issue against it. It is the only package that talks
// database/sql directly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aosc-dev/pvrepo/internal/record"
)

// Store wraps the database connection. The control thread owns it; workers
// must never see it.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init idempotently creates every table and the indexes required for the
// queries below. Called once at scan start.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return s.RefreshIndexes(ctx, true)
}

// RefreshIndexes rebuilds the derived indexes. touched indicates whether any
// repo mutated since the last refresh; when false this is a cheap no-op
// (Init calls it with true every time it runs).
func (s *Store) RefreshIndexes(ctx context.Context, touched bool) error {
	if !touched {
		return nil
	}
	for _, stmt := range indexStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: refresh indexes: %w", err)
		}
	}
	return nil
}

// Tx wraps a single (branch, component) scan unit's transaction.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a transaction for one scan unit.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// InventoryRow is one row read back during Phase 1's existing-inventory
// classification, drawn from pv_packages and pv_package_duplicate alike: an
// evicted duplicate's backing file can still be sitting unchanged on disk,
// and Phase 1 needs to recognize it as already-seen to stay idempotent.
type InventoryRow struct {
	Package      string
	Version      string
	Repo         string
	Architecture string
	Filename     string
	Size         int64
	Mtime        int64
	SHA256       string
}

// ListInventory returns every Package Record and Duplicate Archive Record
// whose filename starts with prefix (a pool/<branch>/<component>/ path), so
// Phase 1 can classify an archive that was previously evicted into
// pv_package_duplicate under a different filename, not just the live
// pv_packages row.
func (t *Tx) ListInventory(ctx context.Context, prefix string) ([]InventoryRow, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT package, version, repo, architecture, filename, size, mtime, sha256
		   FROM pv_packages WHERE filename LIKE ? ESCAPE '\'
		  UNION ALL
		 SELECT package, version, repo, architecture, filename, size, mtime, sha256
		   FROM pv_package_duplicate WHERE filename LIKE ? ESCAPE '\'`,
		likePrefix(prefix), likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("store: list inventory: %w", err)
	}
	defer rows.Close()
	return scanInventory(rows)
}

func scanInventory(rows *sql.Rows) ([]InventoryRow, error) {
	var out []InventoryRow
	for rows.Next() {
		var r InventoryRow
		if err := rows.Scan(&r.Package, &r.Version, &r.Repo, &r.Architecture, &r.Filename, &r.Size, &r.Mtime, &r.SHA256); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func likePrefix(prefix string) string {
	escaped := ""
	for _, c := range prefix {
		switch c {
		case '%', '_', '\\':
			escaped += `\` + string(c)
		default:
			escaped += string(c)
		}
	}
	return escaped + "%"
}

// DeletePackage removes the pv_packages row identified by filename, plus its
// dependent rows. Matching by filename (not (package, version, repo), which
// is not unique across pv_packages and pv_package_duplicate together) means
// an inventory row drawn from pv_package_duplicate whose backing file has
// vanished is a no-op here rather than deleting an unrelated live pv_packages
// row that happens to share the same (package, version, repo) key, exactly
// as the original project's own `DELETE FROM pv_packages WHERE filename=%s`.
func (t *Tx) DeletePackage(ctx context.Context, filename, pkg, version, repo string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM pv_packages WHERE filename=?`, filename)
	if err != nil {
		return fmt.Errorf("store: delete package: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete package: rows affected: %w", err)
	}
	if n == 0 {
		return nil
	}
	return t.deleteChildren(ctx, pkg, version, repo)
}

func (t *Tx) deleteChildren(ctx context.Context, pkg, version, repo string) error {
	stmts := []string{
		`DELETE FROM pv_package_dependencies WHERE package=? AND version=? AND repo=?`,
		`DELETE FROM pv_package_sodep WHERE package=? AND version=? AND repo=?`,
		`DELETE FROM pv_package_files WHERE package=? AND version=? AND repo=?`,
	}
	for _, stmt := range stmts {
		if _, err := t.tx.ExecContext(ctx, stmt, pkg, version, repo); err != nil {
			return fmt.Errorf("store: delete children: %w", err)
		}
	}
	return nil
}

// DeleteDuplicateKey removes every Duplicate Archive Record for
// (pkg, version, repo). Called when a same-version collision is about to
// evict a fresh row for that key, so stale evictions from earlier collisions
// do not pile up.
func (t *Tx) DeleteDuplicateKey(ctx context.Context, pkg, version, repo string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM pv_package_duplicate WHERE package=? AND version=? AND repo=?`, pkg, version, repo)
	if err != nil {
		return fmt.Errorf("store: delete duplicate key: %w", err)
	}
	return nil
}

// EvictToDuplicate copies the Package Record identified by filename into
// pv_package_duplicate, then deletes the original row and its children. This
// is the same-version-collision path: a rebuilt archive under a new filename
// displaces the recorded one, which is preserved as a Duplicate Archive
// Record.
func (t *Tx) EvictToDuplicate(ctx context.Context, filename string) error {
	row := t.tx.QueryRowContext(ctx, `SELECT package, version, repo, architecture, filename, size, mtime, sha256,
		debtime, section, installed_size, maintainer, description, control, vercomp, degraded
		FROM pv_packages WHERE filename=?`, filename)

	var pkg, version, repo, arch, fn, sha, section, installedSize, maintainer, description, control, vercomp string
	var size, mtime, debtime, degraded int64
	if err := row.Scan(&pkg, &version, &repo, &arch, &fn, &size, &mtime, &sha,
		&debtime, &section, &installedSize, &maintainer, &description, &control, &vercomp, &degraded); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("store: evict to duplicate: read: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `INSERT INTO pv_package_duplicate
		(package, version, repo, architecture, filename, size, mtime, sha256, debtime, section,
		 installed_size, maintainer, description, control, vercomp, degraded)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		pkg, version, repo, arch, fn, size, mtime, sha, debtime, section,
		installedSize, maintainer, description, control, vercomp, degraded); err != nil {
		return fmt.Errorf("store: evict to duplicate: insert: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM pv_packages WHERE filename=?`, filename); err != nil {
		return fmt.Errorf("store: evict to duplicate: delete: %w", err)
	}
	return t.deleteChildren(ctx, pkg, version, repo)
}

// LatestVersion returns the highest (by comparable version) existing version
// string for (pkg, repo), or ok=false if none exists.
func (t *Tx) LatestVersion(ctx context.Context, pkg, repo string) (version string, ok bool, err error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT version FROM pv_packages WHERE package=? AND repo=? ORDER BY vercomp DESC LIMIT 1`,
		pkg, repo)
	if err = row.Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: latest version: %w", err)
	}
	return version, true, nil
}

// ExistingFilename returns the on-disk filename currently recorded for
// (pkg, version, repo), or "" if no such row exists.
func (t *Tx) ExistingFilename(ctx context.Context, pkg, version, repo string) (string, error) {
	var filename string
	row := t.tx.QueryRowContext(ctx,
		`SELECT filename FROM pv_packages WHERE package=? AND version=? AND repo=?`, pkg, version, repo)
	if err := row.Scan(&filename); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("store: existing filename: %w", err)
	}
	return filename, nil
}

// UpsertRepo inserts the Repository row for repo if absent. path is the
// component path "branch/component"; branchIdx is the branch's position in
// the configured branch list.
func (t *Tx) UpsertRepo(ctx context.Context, repo, realname, path string, branchIdx int, branch, component, arch string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO pv_repos (name, realname, path, branch_idx, branch, component, architecture, mtime)
		 VALUES (?,?,?,?,?,?,?,0) ON CONFLICT(name) DO NOTHING`,
		repo, realname, path, branchIdx, branch, component, arch)
	if err != nil {
		return fmt.Errorf("store: upsert repo: %w", err)
	}
	return nil
}

// BumpRepoMtime sets repo's mtime to now if now is greater than the current
// value.
func (t *Tx) BumpRepoMtime(ctx context.Context, repo string, now int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE pv_repos SET mtime=? WHERE name=? AND mtime<?`, now, repo, now)
	if err != nil {
		return fmt.Errorf("store: bump repo mtime: %w", err)
	}
	return nil
}

// InsertPackage inserts a Package Record and its dependency, shared-object,
// and file rows.
func (t *Tx) InsertPackage(ctx context.Context, p *record.Package) error {
	controlJSON, err := json.Marshal(p.Control)
	if err != nil {
		return fmt.Errorf("store: marshal control: %w", err)
	}

	degraded := 0
	if p.Degraded {
		degraded = 1
	}

	_, err = t.tx.ExecContext(ctx, `INSERT INTO pv_packages
		(package, version, repo, architecture, filename, size, mtime, sha256, debtime, section,
		 installed_size, maintainer, description, control, vercomp, degraded)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.Name, p.Version, p.Repo, p.Architecture, p.Filename, p.Size, p.Mtime, p.SHA256, p.DebTime,
		p.Section, p.InstalledSize, p.Maintainer, p.Description, string(controlJSON), p.ComparableVersion, degraded)
	if err != nil {
		return fmt.Errorf("store: insert package: %w", err)
	}

	for _, d := range p.Dependencies {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO pv_package_dependencies
			(package, version, repo, relation, value) VALUES (?,?,?,?,?)
			ON CONFLICT(package, version, repo, relation) DO UPDATE SET value=excluded.value`,
			p.Name, p.Version, p.Repo, string(d.Relation), d.Value); err != nil {
			return fmt.Errorf("store: insert dependency: %w", err)
		}
	}

	for _, so := range p.SharedObjects {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO pv_package_sodep
			(package, version, repo, direction, soname_stem, soname_suffix) VALUES (?,?,?,?,?,?)`,
			p.Name, p.Version, p.Repo, int(so.Direction), so.Stem, so.Suffix); err != nil {
			return fmt.Errorf("store: insert shared object: %w", err)
		}
	}

	for _, f := range p.Files {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO pv_package_files
			(package, version, repo, dir, basename, size, ftype, perm, uid, gid, uname, gname)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			p.Name, p.Version, p.Repo, f.Dir, f.Base, f.Size, string(f.Type), f.Perm, f.UID, f.GID, f.Uname, f.Gname); err != nil {
			return fmt.Errorf("store: insert file: %w", err)
		}
	}

	return nil
}

// ReleasePackageRow is one row read back by the release generator, from
// either pv_packages or the alternate dpkg_packages input (both store the
// control column as a JSON document).
type ReleasePackageRow struct {
	Package      string
	Version      string
	Architecture string
	Filename     string
	Size         int64
	SHA256       string
	Control      map[string]string
}

// ListReleasePackages returns every package whose filename starts with
// prefix, reading from pv_packages and, where present, the alternate
// dpkg_packages input table (whose control column is likewise a JSON
// document), and unmarshaling each row's control column.
func (s *Store) ListReleasePackages(ctx context.Context, prefix string) ([]ReleasePackageRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT package, version, architecture, filename, size, sha256, control
		   FROM pv_packages WHERE filename LIKE ? ESCAPE '\'
		  UNION ALL
		 SELECT package, version, architecture, filename, size, sha256, control
		   FROM dpkg_packages WHERE filename LIKE ? ESCAPE '\'`,
		likePrefix(prefix), likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("store: list release packages: %w", err)
	}
	defer rows.Close()

	var out []ReleasePackageRow
	for rows.Next() {
		var r ReleasePackageRow
		var controlJSON string
		if err := rows.Scan(&r.Package, &r.Version, &r.Architecture, &r.Filename, &r.Size, &r.SHA256, &controlJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(controlJSON), &r.Control); err != nil {
			return nil, fmt.Errorf("store: decode control for %s: %w", r.Filename, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReleaseFileRow is one pv_package_files row joined in for Contents
// generation.
type ReleaseFileRow struct {
	Dir          string
	Base         string
	FType        string
	Package      string
	Section      string
	Architecture string
}

// ListReleaseFiles returns every regular-file entry belonging to a package
// under prefix, for Contents index generation. Rows are drawn from
// pv_package_files joined against pv_packages, plus the alternate
// dpkg_package_files/dpkg_packages pair (section recovered from the latter's
// JSON control column since that table carries no dedicated column for it).
func (s *Store) ListReleaseFiles(ctx context.Context, prefix string) ([]ReleaseFileRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.dir, f.basename, f.ftype, p.package, p.section, p.architecture
		  FROM pv_package_files f
		  JOIN pv_packages p ON p.package = f.package AND p.version = f.version AND p.repo = f.repo
		 WHERE p.filename LIKE ? ESCAPE '\' AND f.ftype = 'reg'
		 UNION ALL
		SELECT f.dir, f.basename, f.ftype, p.package, COALESCE(json_extract(p.control, '$.Section'), ''), p.architecture
		  FROM dpkg_package_files f
		  JOIN dpkg_packages p ON p.package = f.package AND p.version = f.version AND p.repo = f.repo
		 WHERE p.filename LIKE ? ESCAPE '\' AND f.ftype = 'reg'`, likePrefix(prefix), likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("store: list release files: %w", err)
	}
	defer rows.Close()

	var out []ReleaseFileRow
	for rows.Next() {
		var r ReleaseFileRow
		if err := rows.Scan(&r.Dir, &r.Base, &r.FType, &r.Package, &r.Section, &r.Architecture); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MaxRepoMtime returns the maximum mtime across all Repository rows, used by
// the orchestrator's before/after scan-touched comparison.
func (s *Store) MaxRepoMtime(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT MAX(mtime) FROM pv_repos`)
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("store: max repo mtime: %w", err)
	}
	return max.Int64, nil
}
