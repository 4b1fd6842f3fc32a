package store

// schema holds the DDL for every table in the data model. Column names
// follow the original project's own table names (pv_packages,
// pv_package_duplicate, pv_package_dependencies, pv_package_sodep,
// pv_package_files, pv_repos) plus the release generator's read-side
// companions (dpkg_packages, dpkg_package_files).
const schema = `
CREATE TABLE IF NOT EXISTS pv_repos (
	name         TEXT PRIMARY KEY,
	realname     TEXT NOT NULL,
	path         TEXT NOT NULL,
	branch_idx   INTEGER NOT NULL DEFAULT 0,
	branch       TEXT NOT NULL,
	component    TEXT NOT NULL,
	architecture TEXT NOT NULL,
	mtime        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pv_packages (
	package       TEXT NOT NULL,
	version       TEXT NOT NULL,
	repo          TEXT NOT NULL,
	architecture  TEXT NOT NULL,
	filename      TEXT NOT NULL,
	size          INTEGER NOT NULL,
	mtime         INTEGER NOT NULL,
	sha256        TEXT NOT NULL DEFAULT '',
	debtime       INTEGER NOT NULL DEFAULT 0,
	section       TEXT NOT NULL DEFAULT '',
	installed_size TEXT NOT NULL DEFAULT '',
	maintainer    TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	control       TEXT NOT NULL DEFAULT '{}',
	vercomp       TEXT NOT NULL,
	degraded      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (package, version, repo)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pv_packages_filename ON pv_packages(filename);

CREATE TABLE IF NOT EXISTS pv_package_duplicate (
	package       TEXT NOT NULL,
	version       TEXT NOT NULL,
	repo          TEXT NOT NULL,
	architecture  TEXT NOT NULL,
	filename      TEXT NOT NULL,
	size          INTEGER NOT NULL,
	mtime         INTEGER NOT NULL,
	sha256        TEXT NOT NULL DEFAULT '',
	debtime       INTEGER NOT NULL DEFAULT 0,
	section       TEXT NOT NULL DEFAULT '',
	installed_size TEXT NOT NULL DEFAULT '',
	maintainer    TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	control       TEXT NOT NULL DEFAULT '{}',
	vercomp       TEXT NOT NULL,
	degraded      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pv_package_dependencies (
	package  TEXT NOT NULL,
	version  TEXT NOT NULL,
	repo     TEXT NOT NULL,
	relation TEXT NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (package, version, repo, relation)
);

CREATE TABLE IF NOT EXISTS pv_package_sodep (
	package       TEXT NOT NULL,
	version       TEXT NOT NULL,
	repo          TEXT NOT NULL,
	direction     INTEGER NOT NULL,
	soname_stem   TEXT NOT NULL,
	soname_suffix TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pv_package_files (
	package  TEXT NOT NULL,
	version  TEXT NOT NULL,
	repo     TEXT NOT NULL,
	dir      TEXT NOT NULL,
	basename TEXT NOT NULL,
	size     INTEGER NOT NULL,
	ftype    TEXT NOT NULL,
	perm     INTEGER NOT NULL,
	uid      INTEGER NOT NULL,
	gid      INTEGER NOT NULL,
	uname    TEXT NOT NULL,
	gname    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dpkg_packages (
	package      TEXT NOT NULL,
	version      TEXT NOT NULL,
	repo         TEXT NOT NULL,
	architecture TEXT NOT NULL,
	filename     TEXT NOT NULL,
	size         INTEGER NOT NULL,
	sha256       TEXT NOT NULL,
	control      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dpkg_package_files (
	package  TEXT NOT NULL,
	version  TEXT NOT NULL,
	repo     TEXT NOT NULL,
	dir      TEXT NOT NULL,
	basename TEXT NOT NULL,
	ftype    TEXT NOT NULL
);
`

// indexStatements rebuild the derived indexes refresh-indexes is responsible
// for: lookup by filename prefix, by (package, repo), by (package, version,
// repo), and by repo. The filename-prefix index is a plain btree index since
// sqlite's default collation already supports efficient prefix range scans
// against it.
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_pv_packages_prefix ON pv_packages(filename, repo)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_packages_pkgrepo ON pv_packages(package, repo, vercomp)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_packages_pkgverrepo ON pv_packages(package, version, repo)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_packages_repo ON pv_packages(repo)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_package_deps_repo ON pv_package_dependencies(repo)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_package_sodep_repo ON pv_package_sodep(repo)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_package_files_repo ON pv_package_files(repo)`,
	`CREATE INDEX IF NOT EXISTS idx_dpkg_packages_repo ON dpkg_packages(repo)`,
	`CREATE INDEX IF NOT EXISTS idx_dpkg_package_files_repo ON dpkg_package_files(repo)`,
}
