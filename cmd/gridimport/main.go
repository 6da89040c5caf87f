// Command gridimport runs import profiles from the command line.
package main

import (
	"os"

	"github.com/JonMunkholm/gridimport/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
