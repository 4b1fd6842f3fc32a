// Package record builds the row shapes the reconciler writes to the
// database from archive-scanner output plus filesystem facts, per the
// Package Record Builder.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aosc-dev/pvrepo/deb"
	"github.com/aosc-dev/pvrepo/internal/scanner"
)

// File is one manifest entry belonging to a Package Record.
type File struct {
	Dir   string
	Base  string
	Size  int64
	Type  deb.FileType
	Perm  int
	UID   int
	GID   int
	Uname string
	Gname string
}

// SharedObject is one provides/depends soname entry.
type SharedObject struct {
	Direction Direction
	Stem      string
	Suffix    string
}

// Direction distinguishes a shared-object provide from a shared-object
// dependency.
type Direction int

const (
	Provides Direction = 0
	Depends  Direction = 1
)

// Dependency is one relation clause belonging to a Package Record.
type Dependency struct {
	Relation deb.ControlField
	Value    string
}

// Package is the fully built row shape for a single archive: the unique key
// plus every attribute and child record the reconciler needs to persist.
type Package struct {
	Name              string
	Version           string
	Repo              string
	Architecture      string
	Filename          string
	Size              int64
	Mtime             int64
	SHA256            string
	DebTime           int64 // 0 when degraded
	Section           string
	InstalledSize     string
	Maintainer        string
	Description       string
	Control           map[string]string
	ComparableVersion string

	Dependencies  []Dependency
	SharedObjects []SharedObject
	Files         []File

	Degraded bool
}

// Build converts a successful scanner Result plus filesystem facts into a
// Package Record.
func Build(absPath, poolRelPath string, size, mtime int64, res *scanner.Result) (*Package, error) {
	ctl := deb.NewControl()
	for k, v := range res.Control {
		ctl.SetRaw(k, v)
	}

	name, _ := ctl.Get(deb.FieldPackage)
	version, _ := ctl.Get(deb.FieldVersion)
	arch, _ := ctl.Get(deb.FieldArchitecture)
	section, _ := ctl.Get(deb.FieldSection)
	installedSize, _ := ctl.Get(deb.FieldInstalledSize)
	maintainer, _ := ctl.Get(deb.FieldMaintainer)
	description, _ := ctl.Get(deb.FieldDescription)

	p := &Package{
		Name:              name,
		Version:           version,
		Architecture:      arch,
		Filename:          poolRelPath,
		Size:              size,
		Mtime:             mtime,
		SHA256:            hex.EncodeToString(res.HashValue),
		DebTime:           res.Time,
		Section:           section,
		InstalledSize:     installedSize,
		Maintainer:        maintainer,
		Description:       description,
		Control:           ctl.Fields(),
		ComparableVersion: deb.ComparableKey(version),
	}

	for field, value := range ctl.Relations() {
		p.Dependencies = append(p.Dependencies, Dependency{Relation: field, Value: value})
	}

	for _, soname := range res.SOProvide {
		stem, suffix := SplitSoname(soname)
		p.SharedObjects = append(p.SharedObjects, SharedObject{Direction: Provides, Stem: stem, Suffix: suffix})
	}
	for _, soname := range res.SODepend {
		stem, suffix := SplitSoname(soname)
		p.SharedObjects = append(p.SharedObjects, SharedObject{Direction: Depends, Stem: stem, Suffix: suffix})
	}

	for _, f := range res.Files {
		dir, base := NormalizePath(f.Path)
		p.Files = append(p.Files, File{
			Dir:   dir,
			Base:  base,
			Size:  f.Size,
			Type:  deb.ClassifyMode(f.Type),
			Perm:  f.Perm,
			UID:   f.UID,
			GID:   f.GID,
			Uname: f.Uname,
			Gname: f.Gname,
		})
	}

	return p, nil
}

// BuildDegraded synthesizes a skeletal Package Record for an archive the
// scanner could not parse: identity is derived from the filename alone.
func BuildDegraded(absPath, poolRelPath string, size, mtime int64) (*Package, error) {
	name, version, arch, err := ParseDebFilename(poolRelPath)
	if err != nil {
		return nil, err
	}

	p := &Package{
		Name:              name,
		Version:           version,
		Architecture:      arch,
		Filename:          poolRelPath,
		Size:              size,
		Mtime:             mtime,
		ComparableVersion: deb.ComparableKey(version),
		Degraded:          true,
	}

	if sum, err := sha256File(absPath); err == nil {
		p.SHA256 = sum
	}

	return p, nil
}

// SHA256File returns the lowercase hex SHA256 digest of the file at absPath.
func SHA256File(absPath string) (string, error) {
	return sha256File(absPath)
}

func sha256File(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ParseDebFilename derives (package, version, architecture) from a .deb
// basename of the form <package>_<version>_<architecture>.deb, percent
// decoding the basename first (dpkg encodes ':' in epoch-bearing versions as
// "%3a" in on-disk filenames).
func ParseDebFilename(poolRelPath string) (name, version, arch string, err error) {
	base := path.Base(poolRelPath)
	base = strings.TrimSuffix(base, ".deb")

	decoded, decErr := url.PathUnescape(base)
	if decErr == nil {
		base = decoded
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("record: cannot derive package identity from filename %q", poolRelPath)
	}
	return parts[0], parts[1], parts[2], nil
}

// NormalizePath joins path with a leading slash, collapses "." and "..", and
// splits the result into a directory (without leading slash) and basename.
func NormalizePath(p string) (dir, base string) {
	clean := path.Clean("/" + p)
	dir = strings.TrimPrefix(path.Dir(clean), "/")
	base = path.Base(clean)
	if dir == "." {
		dir = ""
	}
	return dir, base
}

// SplitSoname splits a shared-object name at its final ".so" occurrence into
// (stem, suffix): "libfoo.so.1.2" becomes ("libfoo.so", ".1.2").
func SplitSoname(name string) (stem, suffix string) {
	idx := strings.LastIndex(name, ".so")
	if idx < 0 {
		return name, ""
	}
	return name[:idx+3], name[idx+3:]
}

// RepoIdentity derives a Repository's realname and full repo key from its
// (branch, component, architecture): architecture "all" maps to "noarch";
// any component other than "main" prefixes the realname with
// "<component>-"; the repo key is "<realname>/<branch>".
func RepoIdentity(branch, component, arch string) (realname, repo string) {
	name := arch
	if name == "all" {
		name = "noarch"
	}
	if component != "main" {
		name = component + "-" + name
	}
	return name, name + "/" + branch
}
