// Command trialdossier builds disease- and target-centric dossier CSVs from
// clinical trial registry data and drug annotations.
package main

import (
	"os"

	"github.com/bioforge/trialdossier/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
