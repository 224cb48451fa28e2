// Command webtest maintains the snapshot cache of the webtest
// functional-test library.
package main

import (
	"os"

	"github.com/roach88/webtest/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
