package main

import (
	"os"

	"piawg/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
