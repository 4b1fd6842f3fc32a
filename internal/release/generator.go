// Package release materializes the distribution metadata tree (Packages,
// Contents, Release, InRelease) from the committed database and publishes it
// atomically, adapting the stanza/Release-block generation the teacher's deb
// package used to build a single repository tarball into a staged
// dists.new/dists/dists.old directory tree.
package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aosc-dev/pvrepo/deb"
	"github.com/aosc-dev/pvrepo/internal/config"
	"github.com/aosc-dev/pvrepo/internal/store"
)

// sectionPlaceholder is the literal string used wherever a package's Section
// is absent in a Contents producer entry, chosen once per the boundary
// behavior in §8 and applied consistently.
const sectionPlaceholder = "None"

// Generator builds and publishes the dists tree from the database.
type Generator struct {
	Store  *store.Store
	Logger *zap.SugaredLogger
}

// New returns a Generator reading from st.
func New(st *store.Store, logger *zap.SugaredLogger) *Generator {
	return &Generator{Store: st, Logger: logger}
}

type releaseEntry struct {
	relPath string // relative to the branch directory
	size    int64
	sha256  string
}

// Generate builds dists.new for every configured branch present under
// pool/, signs each branch's Release, and atomically publishes the result by
// the three-way rename protocol.
func (g *Generator) Generate(ctx context.Context, baseDir string, cfg *config.Config) error {
	stagingRoot := filepath.Join(baseDir, "dists.new")
	if err := os.RemoveAll(stagingRoot); err != nil {
		return fmt.Errorf("release: clearing staging tree: %w", err)
	}
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return fmt.Errorf("release: creating staging tree: %w", err)
	}

	for _, branch := range cfg.Branches {
		if err := g.generateBranch(ctx, baseDir, stagingRoot, branch, cfg); err != nil {
			return fmt.Errorf("release: branch %s: %w", branch, err)
		}
	}

	return g.publish(baseDir)
}

func (g *Generator) generateBranch(ctx context.Context, baseDir, stagingRoot, branch string, cfg *config.Config) error {
	poolBranchDir := filepath.Join(baseDir, "pool", branch)
	componentDirs, err := os.ReadDir(poolBranchDir)
	if err != nil {
		if os.IsNotExist(err) {
			g.Logger.Warnw("configured branch missing from pool", "branch", branch)
			return nil
		}
		return err
	}

	var components []string
	for _, d := range componentDirs {
		if d.IsDir() {
			components = append(components, d.Name())
		}
	}
	sort.Strings(components)
	if len(components) == 0 {
		// Branches with no components still omit Release entirely.
		return nil
	}

	branchDir := filepath.Join(stagingRoot, branch)
	if err := os.MkdirAll(branchDir, 0o755); err != nil {
		return err
	}

	archSet := make(map[string]bool)
	var entries []releaseEntry

	for _, component := range components {
		compArchs, compEntries, err := g.generateComponent(ctx, baseDir, branchDir, branch, component)
		if err != nil {
			return fmt.Errorf("component %s: %w", component, err)
		}
		for a := range compArchs {
			archSet[a] = true
		}
		entries = append(entries, compEntries...)
	}

	var architectures []string
	for a := range archSet {
		architectures = append(architectures, a)
	}
	sort.Strings(architectures)

	meta := cfg.BranchMeta(branch)
	releasePath := filepath.Join(branchDir, "Release")
	if err := writeReleaseFile(releasePath, meta, branch, architectures, components, entries); err != nil {
		return err
	}

	inReleasePath := filepath.Join(branchDir, "InRelease")
	if err := clearsign(ctx, releasePath, inReleasePath); err != nil {
		// Signer failure ends the whole Generate call before publish(), so
		// the staging tree is left unpublished in dists.new (the next
		// Generate clears it) and the prior dists stays intact.
		return err
	}
	return os.Remove(releasePath)
}

func (g *Generator) generateComponent(ctx context.Context, baseDir, branchDir, branch, component string) (map[string]bool, []releaseEntry, error) {
	prefix := path.Join("pool", branch, component) + "/"
	rows, err := g.Store.ListReleasePackages(ctx, prefix)
	if err != nil {
		return nil, nil, err
	}

	compDir := filepath.Join(branchDir, component)
	if err := os.MkdirAll(compDir, 0o755); err != nil {
		return nil, nil, err
	}

	byArch := make(map[string][]store.ReleasePackageRow)
	for _, r := range rows {
		byArch[r.Architecture] = append(byArch[r.Architecture], r)
	}
	// binary-all/Packages is always materialized, even empty, matching the
	// original release generator's unconditional
	// arch_packages = {'all': open(basedir/"binary-all"/"Packages", 'w')}.
	if _, ok := byArch["all"]; !ok {
		byArch["all"] = nil
	}

	var entries []releaseEntry
	archsPresent := make(map[string]bool) // non-"all" architectures

	var archNames []string
	for a := range byArch {
		archNames = append(archNames, a)
	}
	sort.Strings(archNames)

	for _, arch := range archNames {
		pkgRows := byArch[arch]
		sort.Slice(pkgRows, func(i, j int) bool { return pkgRows[i].Package < pkgRows[j].Package })

		dirName := "binary-" + arch
		binDir := filepath.Join(compDir, dirName)
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			return nil, nil, err
		}

		var b strings.Builder
		for _, row := range pkgRows {
			ctl := deb.NewControl()
			for k, v := range row.Control {
				ctl.SetRaw(k, v)
			}
			b.WriteString(deb.StanzaWithTrailer(ctl, row.Filename, row.Size, row.SHA256))
			b.WriteString("\n")
		}

		packagesPath := filepath.Join(binDir, "Packages")
		data := []byte(b.String())
		if err := os.WriteFile(packagesPath, data, 0o644); err != nil {
			return nil, nil, err
		}
		entries = append(entries, fileEntry(branchDir, packagesPath, data))

		if err := compressXZ(ctx, packagesPath); err != nil {
			return nil, nil, err
		}
		if xzData, err := os.ReadFile(packagesPath + ".xz"); err == nil {
			entries = append(entries, fileEntry(branchDir, packagesPath+".xz", xzData))
		}

		if arch != "all" {
			archsPresent[arch] = true
		}
	}

	// Contents-all/ is always created as a placeholder directory, matching
	// the original's unconditional basedir.joinpath('Contents-all').mkdir(...)
	// regardless of which (or whether any) non-"all" architectures are
	// present.
	if err := os.MkdirAll(filepath.Join(compDir, "Contents-all"), 0o755); err != nil {
		return nil, nil, err
	}

	for arch := range archsPresent {
		fileRows, err := g.Store.ListReleaseFiles(ctx, prefix)
		if err != nil {
			return nil, nil, err
		}
		contentsData := buildContents(fileRows, arch)

		gz, err := gzipBytes(contentsData)
		if err != nil {
			return nil, nil, err
		}
		gzPath := filepath.Join(compDir, "Contents-"+arch+".gz")
		if err := os.WriteFile(gzPath, gz, 0o644); err != nil {
			return nil, nil, err
		}
		entries = append(entries, fileEntry(branchDir, gzPath, gz))
	}

	return archsPresent, entries, nil
}

// buildContents renders the Contents-<arch> body: one line per distinct
// (dir, basename) pair among regular files whose owning package's
// architecture matches arch or is "all".
func buildContents(rows []store.ReleaseFileRow, arch string) []byte {
	type key struct{ dir, base string }
	producers := make(map[key]map[string]bool)
	var order []key

	for _, r := range rows {
		if r.Architecture != arch && r.Architecture != "all" {
			continue
		}
		k := key{r.Dir, r.Base}
		if producers[k] == nil {
			producers[k] = make(map[string]bool)
			order = append(order, k)
		}
		section := r.Section
		if section == "" {
			section = sectionPlaceholder
		}
		producers[k][section+"/"+r.Package] = true
	}

	sort.Slice(order, func(i, j int) bool {
		fi := fullPath(order[i].dir, order[i].base)
		fj := fullPath(order[j].dir, order[j].base)
		return fi < fj
	})

	var b strings.Builder
	for _, k := range order {
		full := fullPath(k.dir, k.base)
		var names []string
		for p := range producers[k] {
			names = append(names, p)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "%-55s %s\n", full, strings.Join(names, ","))
	}
	return []byte(b.String())
}

func fullPath(dir, base string) string {
	if dir == "" {
		return base
	}
	return dir + "/" + base
}

func fileEntry(branchDir, absPath string, data []byte) releaseEntry {
	rel, _ := filepath.Rel(branchDir, absPath)
	sum := sha256.Sum256(data)
	return releaseEntry{relPath: filepath.ToSlash(rel), size: int64(len(data)), sha256: hex.EncodeToString(sum[:])}
}

func writeReleaseFile(path string, meta config.Branch, branch string, architectures, components []string, entries []releaseEntry) error {
	var b strings.Builder
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, value)
		}
	}

	field(string(deb.RelOrigin), meta.Origin)
	field(string(deb.RelLabel), meta.Label)
	field(string(deb.RelSuite), branch)
	field(string(deb.RelCodename), meta.Codename)
	field(string(deb.RelDescription), meta.Desc)
	now := time.Now().UTC()
	field(string(deb.RelDate), now.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	if meta.TTLDays > 0 {
		field(string(deb.RelValidUntil), now.Add(time.Duration(meta.TTLDays)*24*time.Hour).Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	}
	field(string(deb.RelArchitectures), strings.Join(architectures, " "))
	field(string(deb.RelComponents), strings.Join(components, " "))

	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })
	fmt.Fprintf(&b, "%s:\n", deb.RelSHA256)
	for _, e := range entries {
		fmt.Fprintf(&b, " %s %d %s\n", e.sha256, e.size, e.relPath)
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// publish performs the atomic three-way rename: dists -> dists.old,
// dists.new -> dists, then removes dists.old. These two renames are the only
// observable mutations to the live tree.
func (g *Generator) publish(baseDir string) error {
	dists := filepath.Join(baseDir, "dists")
	distsOld := filepath.Join(baseDir, "dists.old")
	distsNew := filepath.Join(baseDir, "dists.new")

	if _, err := os.Stat(dists); err == nil {
		if err := os.Rename(dists, distsOld); err != nil {
			return fmt.Errorf("release: renaming dists to dists.old: %w", err)
		}
	}
	if err := os.Rename(distsNew, dists); err != nil {
		return fmt.Errorf("release: renaming dists.new to dists: %w", err)
	}
	return os.RemoveAll(distsOld)
}
