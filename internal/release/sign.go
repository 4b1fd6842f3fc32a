package release

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// gpgBinary resolves the signer command per the external-interfaces
// contract: the GPG environment variable, falling back to gpg2 then gpg on
// PATH, mirroring the original release generator's own
// `os.environ.get('GPG', shutil.which('gpg2')) or shutil.which('gpg')`.
func gpgBinary() (string, error) {
	if v := os.Getenv("GPG"); v != "" {
		return v, nil
	}
	if p, err := exec.LookPath("gpg2"); err == nil {
		return p, nil
	}
	if p, err := exec.LookPath("gpg"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("release: no signer found (set $GPG or install gpg2/gpg)")
}

// clearsign invokes the signer subprocess against releasePath, writing
// inReleasePath, exactly as
// `<gpg> --batch --yes --clearsign -o <branch>/InRelease <branch>/Release`
// specifies. inReleasePath must always be derived from the branch currently
// being published, never a stale loop variable (see the open question this
// deliberately does not replicate).
func clearsign(ctx context.Context, releasePath, inReleasePath string) error {
	gpg, err := gpgBinary()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, gpg, "--batch", "--yes", "--clearsign", "-o", inReleasePath, releasePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("release: signing %s: %w: %s", releasePath, err, out)
	}
	return nil
}
