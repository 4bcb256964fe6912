package main

import (
	"log"
	"os"

	"github.com/gnomegl/gitgraph/internal/cli"
	"github.com/gnomegl/gitgraph/internal/config"
)

func main() {
	// only show the message
	log.SetFlags(0)

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cli.NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
