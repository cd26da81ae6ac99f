package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func partyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "party",
			Aliases:  []string{"p"},
			Usage:    "Party model id",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "version",
			Aliases:  []string{"v"},
			Usage:    "Model version",
			Required: true,
		},
	}
}

func main() {
	app := &cli.Command{
		Name:  "modelstore",
		Usage: "Inspect and maintain persisted pipeline models",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default ./config.yaml)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "prompt-credentials",
				Usage: "Prompt for the database password instead of reading it from config",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "read",
				Usage: "Print the buffers of one component",
				Flags: append(partyFlags(),
					&cli.StringFlag{
						Name:     "component",
						Aliases:  []string{"k"},
						Usage:    "Component key",
						Required: true,
					},
				),
				Action: readComponent,
			},
			{
				Name:   "collect",
				Usage:  "Print every buffer of a pipeline model version",
				Flags:  partyFlags(),
				Action: collectPipeline,
			},
			{
				Name:  "meta",
				Usage: "Pipeline level key/values",
				Commands: []*cli.Command{
					{
						Name:   "get",
						Usage:  "Print the key/values of a model version",
						Flags:  partyFlags(),
						Action: getMeta,
					},
					{
						Name:      "set",
						Usage:     "Upsert key/values of a model version",
						ArgsUsage: "key=value [key=value...]",
						Flags:     partyFlags(),
						Action:    setMeta,
					},
				},
			},
			{
				Name:  "versions",
				Usage: "List saved versions of a party model, or the changelog of one version",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "party",
						Aliases:  []string{"p"},
						Usage:    "Party model id",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "version",
						Aliases: []string{"v"},
						Usage:   "Show the changelog of this version",
					},
				},
				Action: listVersions,
			},
			{
				Name:   "schemas",
				Usage:  "List registered buffer schemas",
				Action: listSchemas,
			},
			{
				Name:  "export",
				Usage: "Write a pipeline model version as a JSON document",
				Flags: append(partyFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (stdout when empty)",
					},
					&cli.BoolFlag{
						Name:  "encrypt",
						Usage: "Encrypt the document with a passphrase (age)",
					},
				),
				Action: exportPipeline,
			},
			{
				Name:   "backup",
				Usage:  "Write an incremental encrypted backup of the model database",
				Action: runBackup,
			},
			{
				Name:  "restore",
				Usage: "Replay all backups into a new database directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Directory of the restored database",
						Required: true,
					},
				},
				Action: runRestore,
			},
			{
				Name:  "watch",
				Usage: "Follow version log events published on NATS",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address while watching",
					},
				},
				Action: watchVersions,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
