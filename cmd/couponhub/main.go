package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "couponhub",
		Usage: "coupon marketplace wallet, subscription and withdrawal service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/config.yaml",
				Usage:   "path to the YAML config file",
				EnvVars: []string{"COUPONHUB_CONFIG"},
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port, overrides server.port",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "development logging",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background jobs",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update tables and seed subscription plans",
				Action: migrate,
			},
			{
				Name:   "sweep",
				Usage:  "run the subscription lifecycle sweep once",
				Action: sweepOnce,
			},
			{
				Name:   "requeue-outbox",
				Usage:  "retry outbox messages that exhausted their retries",
				Action: requeueOutbox,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
