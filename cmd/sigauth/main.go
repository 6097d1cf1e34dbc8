package main

import (
	"os"

	"github.com/dmitrijs2005/sigauth/internal/client/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
