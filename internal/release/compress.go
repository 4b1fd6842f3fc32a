package release

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// compressXZ produces path+".xz" from the bytes already written to path,
// shelling out to `xz -k -0 -f` per the external-interfaces contract. When no
// xz binary can be found on PATH, it falls back to the in-process
// ulikunitz/xz writer so the operation still succeeds (at a higher CPU cost,
// undocumented in the subprocess contract but never silently skipped).
func compressXZ(ctx context.Context, path string) error {
	if _, err := exec.LookPath("xz"); err == nil {
		cmd := exec.CommandContext(ctx, "xz", "-k", "-0", "-f", path)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("release: xz %s: %w: %s", path, err, out)
		}
		return nil
	}
	return compressXZInProcess(path)
}

func compressXZInProcess(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("release: reading %s for xz fallback: %w", path, err)
	}
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("release: xz fallback writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("release: xz fallback compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("release: xz fallback close: %w", err)
	}
	if err := os.WriteFile(path+".xz", buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("release: writing %s.xz: %w", path, err)
	}
	return nil
}

// gzipBytes compresses data at level 9, in-process, per the
// external-interfaces contract for Contents-<arch>.gz.
func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("release: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("release: gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("release: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}
