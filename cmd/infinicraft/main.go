// Command infinicraft combines elements into new ones with a text generator.
package main

import (
	"context"
	"os"

	"github.com/roach88/infinicraft/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
