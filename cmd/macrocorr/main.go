// Command macrocorr measures how crypto assets move with inflation and with equities.
//
//	macrocorr inflation
//	macrocorr decoupling
//	macrocorr all --config configs/config.yaml
//	macrocorr history --limit 5
package main

import (
	"os"

	"github.com/rewired-gh/macrocorr/cmd/macrocorr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
