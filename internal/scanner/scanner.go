// Package scanner adapts the out-of-scope archive-scanning collaborator: a
// sibling executable, pkgscan_cli, that knows how to read the ar+tar+gzip
// structure of a .deb and report its control fields, file manifest, and
// shared-object exports/imports as JSON.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrCorrupt indicates the scanner recognized the archive but could not parse
// it (exit status 1 or 2). Callers fall back to a degraded Package Record.
var ErrCorrupt = errors.New("scanner: corrupt archive")

// File is one entry from a package's data archive manifest. Type carries the
// high-order mode bits (0o100000 for a regular file, ...); Perm the
// permission bits. They are distinct fields in the JSON contract and stay
// distinct here.
type File struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Type  uint32 `json:"type"`
	Perm  int    `json:"perm"`
	UID   int    `json:"uid"`
	GID   int    `json:"gid"`
	Uname string `json:"uname"`
	Gname string `json:"gname"`
}

// Result is the structured metadata pkgscan_cli reports for a single .deb.
type Result struct {
	Control   map[string]string `json:"control"`
	HashValue []byte            `json:"hash_value"`
	Time      int64             `json:"time"`
	SOProvide []string          `json:"so_provides"`
	SODepend  []string          `json:"so_depends"`
	Files     []File            `json:"files"`
}

// Scanner invokes pkgscan_cli to extract structured metadata from a .deb.
type Scanner struct {
	// BinaryPath is the pkgscan_cli executable Scan runs. New points it at
	// the copy next to the running executable; Scan does not fill in an
	// empty value.
	BinaryPath string
}

// New returns a Scanner that locates pkgscan_cli alongside the current
// executable, matching the original collaborator's own resolution
// (os.path.dirname(__file__) + "/pkgscan_cli").
func New() (*Scanner, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("scanner: locating the running executable: %w", err)
	}
	return WithBinary(filepath.Dir(self)), nil
}

// WithBinary returns a Scanner pinned to the pkgscan_cli executable inside
// dir.
func WithBinary(dir string) *Scanner {
	return &Scanner{BinaryPath: filepath.Join(dir, "pkgscan_cli")}
}

// Scan runs pkgscan_cli against path and decodes its JSON result. A
// corrupt-archive exit (1 or 2) is reported as an error wrapping ErrCorrupt,
// with the process's own error in its message; any other failure to run is
// returned wrapping the process's error and not ErrCorrupt (fatal to the
// caller's scan unit).
func (s *Scanner) Scan(ctx context.Context, path string) (*Result, error) {
	cmd := exec.CommandContext(ctx, s.BinaryPath, path)
	cmd.Stdin = nil
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = nil

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			switch exitErr.ExitCode() {
			case 1, 2:
				return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
			}
		}
		return nil, fmt.Errorf("scanner: running pkgscan_cli for %s: %w", path, err)
	}

	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return nil, fmt.Errorf("scanner: decoding pkgscan_cli output for %s: %w", path, err)
	}
	return &res, nil
}
