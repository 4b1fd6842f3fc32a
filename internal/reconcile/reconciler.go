// Package reconcile implements the Reconciler: for a single (branch,
// component) unit it diffs the database's view of the pool against the live
// directory tree, classifies every difference, and applies the result
// atomically while publishing change events.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/alitto/pond"
	"go.uber.org/zap"

	"github.com/aosc-dev/pvrepo/deb"
	"github.com/aosc-dev/pvrepo/internal/events"
	"github.com/aosc-dev/pvrepo/internal/record"
	"github.com/aosc-dev/pvrepo/internal/scanner"
	"github.com/aosc-dev/pvrepo/internal/store"
)

// Scanning is the archive scanner's interface, satisfied by *scanner.Scanner
// in production and fakeable in tests without shelling out to a real
// pkgscan_cli.
type Scanning interface {
	Scan(ctx context.Context, path string) (*scanner.Result, error)
}

// Reconciler owns the collaborators one (branch, component) scan needs.
type Reconciler struct {
	Store     *store.Store
	Scanner   Scanning
	Publisher events.Publisher
	Logger    *zap.SugaredLogger

	// Workers overrides the Phase 3 pool size; zero means
	// max(1, runtime.NumCPU()-1), per the resource model.
	Workers int
}

// New returns a Reconciler wired to its collaborators.
func New(st *store.Store, sc Scanning, pub events.Publisher, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{Store: st, Scanner: sc, Publisher: pub, Logger: logger}
}

// fsEntry is an immutable unit of Phase 2/3 work: one candidate .deb file on
// disk. Workers receive it and return an independent scanOutcome; no shared
// mutable state crosses the pool boundary.
type fsEntry struct {
	absPath     string
	poolRelPath string
	size        int64
	mtime       int64
}

type scanOutcome struct {
	entry fsEntry
	pkg   *record.Package
	err   error
}

// Run reconciles one (branch, component) unit rooted at baseDir. branchIdx
// is the branch's position in the configured branch list, recorded on the
// Repository rows this unit touches.
func (r *Reconciler) Run(ctx context.Context, baseDir, branch, component string, branchIdx int) error {
	prefix := path.Join("pool", branch, component) + "/"
	componentLabel := branch + "-" + component

	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ignore := make(map[string]bool)
	touchedRepos := make(map[string]bool)

	inventory, err := tx.ListInventory(ctx, prefix)
	if err != nil {
		return err
	}

	// Phase 1: existing inventory classification.
	var superseded = make(map[string]bool)
	for _, row := range inventory {
		abs := filepath.Join(baseDir, row.Filename)
		info, statErr := os.Stat(abs)
		switch {
		case statErr == nil && info.Size() == row.Size &&
			(info.ModTime().Unix() == row.Mtime || sameContent(abs, row.SHA256)):
			ignore[row.Filename] = true

		case statErr == nil:
			// The on-disk file changed under the recorded filename: drop the
			// stale row now and let Phase 4 re-insert it as an overwrite.
			superseded[row.Filename] = true
			if err := tx.DeletePackage(ctx, row.Filename, row.Package, row.Version, row.Repo); err != nil {
				return err
			}
			touchedRepos[row.Repo] = true

		default:
			if err := tx.DeletePackage(ctx, row.Filename, row.Package, row.Version, row.Repo); err != nil {
				return err
			}
			touchedRepos[row.Repo] = true
			r.Publisher.Publish(events.ChangeEvent{
				ComponentLabel: componentLabel,
				Package:        row.Package,
				Architecture:   row.Architecture,
				Kind:           events.KindDelete,
				OldVersion:     row.Version,
				NewVersion:     "",
			})
		}
	}

	// Phase 2: new-file enumeration.
	entries, err := walkPool(baseDir, path.Join("pool", branch, component), ignore)
	if err != nil {
		return err
	}

	// Phase 3: parallel extraction.
	outcomes := r.extract(ctx, entries)

	// Phase 4: apply serially, in a deterministic order (outcomes arrive
	// unordered from the pool; sort by path so logs and duplicate handling
	// are reproducible run to run).
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].entry.poolRelPath < outcomes[j].entry.poolRelPath })

	for _, oc := range outcomes {
		if oc.err != nil {
			r.Logger.Errorw("archive scan failed", "path", oc.entry.poolRelPath, "error", oc.err)
			continue
		}
		if err := r.apply(ctx, tx, componentLabel, branch, component, branchIdx, oc, superseded, touchedRepos); err != nil {
			return err
		}
	}

	now := time.Now().Unix()
	for repo := range touchedRepos {
		if err := tx.BumpRepoMtime(ctx, repo, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func sameContent(absPath, wantSHA256 string) bool {
	if wantSHA256 == "" {
		return false
	}
	got, err := record.SHA256File(absPath)
	if err != nil {
		return false
	}
	return got == wantSHA256
}

// walkPool recursively collects every *.deb file under pool/<branch>/<component>
// that is not present in ignore.
func walkPool(baseDir, poolRel string, ignore map[string]bool) ([]fsEntry, error) {
	root := filepath.Join(baseDir, poolRel)
	var out []fsEntry
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(p) != ".deb" {
			return nil
		}
		rel, err := filepath.Rel(baseDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ignore[rel] {
			return nil
		}
		out = append(out, fsEntry{
			absPath:     p,
			poolRelPath: rel,
			size:        info.Size(),
			mtime:       info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: walking %s: %w", root, err)
	}
	return out, nil
}

// extract dispatches entries across a worker pool of max(1, NumCPU-1)
// workers with a batch size of ~5, matching the resource model's shape.
func (r *Reconciler) extract(ctx context.Context, entries []fsEntry) []scanOutcome {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}

	pool := pond.New(workers, len(entries)+1, pond.MinWorkers(1))
	defer pool.StopAndWait()

	const batchSize = 5
	outcomes := make([]scanOutcome, len(entries))
	for start := 0; start < len(entries); start += batchSize {
		start, end := start, start+batchSize
		if end > len(entries) {
			end = len(entries)
		}
		pool.Submit(func() {
			for i := start; i < end; i++ {
				outcomes[i] = r.scanOne(ctx, entries[i])
			}
		})
	}
	return outcomes
}

func (r *Reconciler) scanOne(ctx context.Context, e fsEntry) scanOutcome {
	res, err := r.Scanner.Scan(ctx, e.absPath)
	if err != nil {
		if errors.Is(err, scanner.ErrCorrupt) {
			pkg, degErr := record.BuildDegraded(e.absPath, e.poolRelPath, e.size, e.mtime)
			if degErr != nil {
				return scanOutcome{entry: e, err: degErr}
			}
			r.Logger.Warnw("corrupt archive, inserting degraded record", "path", e.poolRelPath)
			return scanOutcome{entry: e, pkg: pkg}
		}
		return scanOutcome{entry: e, err: err}
	}

	pkg, err := record.Build(e.absPath, e.poolRelPath, e.size, e.mtime, res)
	return scanOutcome{entry: e, pkg: pkg, err: err}
}

// apply realizes Phase 4 for one built Package Record.
func (r *Reconciler) apply(ctx context.Context, tx *store.Tx, componentLabel, branch, component string, branchIdx int, oc scanOutcome, superseded map[string]bool, touchedRepos map[string]bool) error {
	p := oc.pkg
	realname, repo := record.RepoIdentity(branch, component, p.Architecture)
	p.Repo = repo

	if err := tx.UpsertRepo(ctx, repo, realname, branch+"/"+component, branchIdx, branch, component, p.Architecture); err != nil {
		return err
	}
	touchedRepos[repo] = true

	// The disposition logic below runs for degraded records too: a degraded
	// archive can still supersede or collide with recorded rows, and the
	// same-version eviction must happen before its insert or the primary key
	// rejects it. Only the change events (and their info-level logs) are
	// suppressed for degraded records.
	if superseded[p.Filename] {
		if !p.Degraded {
			r.Publisher.Publish(events.ChangeEvent{
				ComponentLabel: componentLabel, Package: p.Name, Architecture: p.Architecture,
				Kind: events.KindOverwrite, OldVersion: p.Version, NewVersion: p.Version,
			})
		}
		return tx.InsertPackage(ctx, p)
	}

	oldVersion, exists, err := tx.LatestVersion(ctx, p.Name, repo)
	if err != nil {
		return err
	}

	if !exists {
		if !p.Degraded {
			r.Publisher.Publish(events.ChangeEvent{
				ComponentLabel: componentLabel, Package: p.Name, Architecture: p.Architecture,
				Kind: events.KindNew, OldVersion: "", NewVersion: p.Version,
			})
		}
		return tx.InsertPackage(ctx, p)
	}

	cmp := deb.CompareVersions(oldVersion, p.Version)
	switch {
	case cmp < 0:
		if !p.Degraded {
			r.Publisher.Publish(events.ChangeEvent{
				ComponentLabel: componentLabel, Package: p.Name, Architecture: p.Architecture,
				Kind: events.KindUpgrade, OldVersion: oldVersion, NewVersion: p.Version,
			})
		}
	case cmp > 0:
		r.Logger.Warnw("OLD: scanned archive is older than the recorded version", "package", p.Name, "repo", repo, "old", oldVersion, "new", p.Version)
	default:
		r.Logger.Warnw("DUP: same-version collision, evicting existing row", "package", p.Name, "repo", repo, "version", p.Version)
		existingFilename, err := tx.ExistingFilename(ctx, p.Name, p.Version, repo)
		if err != nil {
			return err
		}
		if err := tx.DeleteDuplicateKey(ctx, p.Name, p.Version, repo); err != nil {
			return err
		}
		if existingFilename != "" {
			if err := tx.EvictToDuplicate(ctx, existingFilename); err != nil {
				return err
			}
		}
	}
	return tx.InsertPackage(ctx, p)
}
