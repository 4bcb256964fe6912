//go:build !windows
// +build !windows

package main

import (
	"log"
	"os"

	"github.com/gnomegl/gitgraph/internal/cli"
	"github.com/gnomegl/gitgraph/internal/config"
)

// Same binary as the module root, for `go build ./cmd/...` layouts.
func main() {
	log.SetFlags(0)

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cli.NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
