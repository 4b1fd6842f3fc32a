package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func scriptScanner(t *testing.T, body string) *Scanner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("subprocess script fixtures are shell-only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "pkgscan_cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return &Scanner{BinaryPath: path}
}

func TestScanSuccess(t *testing.T) {
	s := scriptScanner(t, `echo '{"control":{"Package":"hello"},"hash_value":[1,2,3],"time":42,"so_provides":[],"so_depends":[],"files":[]}'`)

	res, err := s.Scan(context.Background(), "/some/path.deb")
	require.NoError(t, err)
	require.Equal(t, "hello", res.Control["Package"])
	require.Equal(t, int64(42), res.Time)
}

func TestScanCorruptExitCode(t *testing.T) {
	for _, code := range []string{"1", "2"} {
		s := scriptScanner(t, "exit "+code)
		_, err := s.Scan(context.Background(), "/some/path.deb")
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrCorrupt))
	}
}

func TestScanFatalExitCode(t *testing.T) {
	s := scriptScanner(t, "exit 3")
	_, err := s.Scan(context.Background(), "/some/path.deb")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrCorrupt))
}
