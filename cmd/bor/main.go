// bor builds, registers and audits replay-verifiable proof bundles.
//
// Usage:
//
//	bor prove <chain.cue> [--verifier <id>] [--no-register] [--compare <bundle>]
//	bor verify <bundle-file>
//	bor register <bundle-file> [--verifier <id>]
//	bor ledger [--quorum <n>] [--require-quorum]
//	bor audit [root] [--last <n>] [--history <db>]
//	bor index <bundle-file> [--write] [--check]
//	bor validate <chains>
//	bor test <scenarios>
package main

import (
	"fmt"
	"os"

	"github.com/roach88/bor/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
