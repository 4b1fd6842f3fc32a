// Command pvrepo scans a pool of .deb archives into a relational index and
// publishes the signed Debian repository metadata tree derived from it.
package main

import (
	"fmt"
	"os"

	"github.com/aosc-dev/pvrepo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
