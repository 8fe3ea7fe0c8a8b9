package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "catalog, cart and checkout service",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading STOREFRONT_* variables",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			queryCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
