package main

import (
	"os"

	"github.com/pingcap/gotidb/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
