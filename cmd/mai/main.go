//
//  Copyright © Manetu Inc. All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/manetu/auditinterceptor/cmd/mai/subcommands/resolve"
	"github.com/manetu/auditinterceptor/cmd/mai/subcommands/serve"
	"github.com/manetu/auditinterceptor/cmd/mai/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "mai",
		Usage:   "A CLI application for working with the Manetu audit interceptor",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` instead of $AUDIT_CONFIG_PATH/$AUDIT_CONFIG_FILENAME.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Starts a gRPC server with the audit interceptors installed, serving health and reflection",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "The TCP port to serve gRPC on.",
						Value: 9000,
					},
					&cli.IntFlag{
						Name:  "metrics-port",
						Usage: "The TCP port to serve Prometheus metrics on.  0 disables the metrics server.",
						Value: 9090,
					},
				},
				Action: serve.Execute,
			},
			{
				Name:  "resolve",
				Usage: "Shows which selector, if any, applies to one or more gRPC methods",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "method",
						Aliases:  []string{"m"},
						Usage:    "Method to resolve, as '/package.Service/Method' or 'package.Service.Method'.  Can be specified multiple times.",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "selectors",
						Aliases: []string{"s"},
						Usage:   "Load selectors from a standalone YAML `FILE` instead of the configuration",
					},
				},
				Action: resolve.Execute,
			},
			{
				Name:  "version",
				Usage: "Prints the version",
				Action: func(ctx context.Context, command *cli.Command) error {
					fmt.Println(version.GetVersion())
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
