package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAndBranchMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pvrepo.yaml")
	data := `
base: /srv/repo
db_path: /srv/repo/pvrepo.db
branches: [stable, testing]
common:
  origin: Example
  label: Example Repository
  ttl: 10
branch_meta:
  stable:
    codename: stable
    desc: Stable releases
  testing:
    codename: testing
    desc: Testing releases
    ttl: 3
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"stable", "testing"}, cfg.Branches)

	stable := cfg.BranchMeta("stable")
	require.Equal(t, "Example", stable.Origin)
	require.Equal(t, "stable", stable.Codename)
	require.Equal(t, 10, stable.TTLDays, "stable inherits the common ttl")

	testing_ := cfg.BranchMeta("testing")
	require.Equal(t, 3, testing_.TTLDays, "testing overrides the common ttl")

	unknown := cfg.BranchMeta("unknown")
	require.Equal(t, "Example", unknown.Origin)
	require.Empty(t, unknown.Codename)
}
