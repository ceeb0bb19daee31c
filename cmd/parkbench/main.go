// README: Offline tooling for the matcher: batch runs over slot files, H3 cell inspection and API smoke checks.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "parkbench",
		Usage: "Utility for exercising the parking matcher",
		Commands: []*cli.Command{
			matchCmd,
			cellsCmd,
			smokeCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
}
