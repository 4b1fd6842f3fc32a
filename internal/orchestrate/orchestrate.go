// Package orchestrate walks branches and components, gates each by
// configuration, and sequences the Reconciler then the Release Generator.
package orchestrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/aosc-dev/pvrepo/internal/config"
	"github.com/aosc-dev/pvrepo/internal/reconcile"
	"github.com/aosc-dev/pvrepo/internal/release"
	"github.com/aosc-dev/pvrepo/internal/store"
)

// Orchestrator sequences a full scan-then-release run.
type Orchestrator struct {
	BaseDir    string
	Config     *config.Config
	Store      *store.Store
	Reconciler *reconcile.Reconciler
	Generator  *release.Generator
	Logger     *zap.SugaredLogger
}

// New wires an Orchestrator from its collaborators.
func New(baseDir string, cfg *config.Config, st *store.Store, rec *reconcile.Reconciler, gen *release.Generator, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{BaseDir: baseDir, Config: cfg, Store: st, Reconciler: rec, Generator: gen, Logger: logger}
}

// Scan walks every on-disk branch under pool/, reconciling each configured
// branch's components and reporting configuration mismatches in both
// directions. It returns whether any repo's mtime moved during the run.
func (o *Orchestrator) Scan(ctx context.Context) (touched bool, err error) {
	if err := o.Store.Init(ctx); err != nil {
		return false, err
	}

	before, err := o.Store.MaxRepoMtime(ctx)
	if err != nil {
		return false, err
	}

	branchIdx := make(map[string]int, len(o.Config.Branches))
	for i, b := range o.Config.Branches {
		branchIdx[b] = i
	}

	poolDir := filepath.Join(o.BaseDir, "pool")
	onDisk, err := os.ReadDir(poolDir)
	if err != nil {
		return false, fmt.Errorf("orchestrate: reading pool dir: %w", err)
	}

	seen := make(map[string]bool)
	var diskBranches []string
	for _, d := range onDisk {
		if d.IsDir() {
			diskBranches = append(diskBranches, d.Name())
		}
	}
	sort.Strings(diskBranches)

	for _, branch := range diskBranches {
		idx, ok := branchIdx[branch]
		if !ok {
			o.Logger.Warnw("pool branch not in configured branch list, skipping", "branch", branch)
			continue
		}
		seen[branch] = true

		branchDir := filepath.Join(poolDir, branch)
		componentDirs, err := os.ReadDir(branchDir)
		if err != nil {
			return false, err
		}
		var components []string
		for _, d := range componentDirs {
			if d.IsDir() {
				components = append(components, d.Name())
			}
		}
		sort.Strings(components)

		for _, component := range components {
			if err := o.Reconciler.Run(ctx, o.BaseDir, branch, component, idx); err != nil {
				o.Logger.Errorw("reconcile failed, continuing to next unit", "branch", branch, "component", component, "error", err)
			}
		}
	}

	for _, branch := range o.Config.Branches {
		if !seen[branch] {
			o.Logger.Warnw("configured branch missing from pool", "branch", branch)
		}
	}

	after, err := o.Store.MaxRepoMtime(ctx)
	if err != nil {
		return false, err
	}
	touched = after > before

	if err := o.Store.RefreshIndexes(ctx, touched); err != nil {
		return touched, err
	}
	return touched, nil
}

// Publish invokes the Release Generator over the configured branches.
func (o *Orchestrator) Publish(ctx context.Context) error {
	return o.Generator.Generate(ctx, o.BaseDir, o.Config)
}

// Run performs a full scan followed by a release publish, mirroring the
// original scan()-then-generate() top-level sequencing.
func (o *Orchestrator) Run(ctx context.Context) error {
	if _, err := o.Scan(ctx); err != nil {
		return err
	}
	return o.Publish(ctx)
}
