package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/releaser/pkg/dispatch"
	"github.com/weberc2/releaser/pkg/release"
	"github.com/weberc2/releaser/pkg/runstore"
)

type Ledger = runstore.RunStore

func main() {
	app := cli.App{
		Name:        "releaser",
		Description: "builds and publishes the community release images",
		Commands: []*cli.Command{{
			Name:      "run",
			ArgsUsage: "<tag>",
			Description: "cross-compile, stage, and publish every catalog " +
				"variant at the given release tag",
			Action: withConfig(func(c *Config, ctx *cli.Context) error {
				if ctx.NArg() != 1 {
					return fmt.Errorf("wanted exactly one argument: <tag>")
				}
				return runRelease(c, ctx.Args().First())
			}),
		}, {
			Name:        "serve",
			Description: "serve release dispatch requests over HTTP",
			Action: withConfig(func(c *Config, ctx *cli.Context) error {
				return serve(c)
			}),
		}, {
			Name:        "variants",
			Description: "print the release catalog as JSON",
			Action: withConfig(func(c *Config, ctx *cli.Context) error {
				catalog, err := c.Catalog()
				if err != nil {
					return err
				}
				return printJSON(catalog)
			}),
		}, {
			Name:        "history",
			Description: "list recorded release runs",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "run",
					Usage: "only list the records for the given run ID",
				},
			},
			Action: withLedger(func(ledger *Ledger, ctx *cli.Context) error {
				if id := ctx.String("run"); id != "" {
					runID, err := uuid.Parse(id)
					if err != nil {
						return fmt.Errorf("parsing run ID `%s`: %w", id, err)
					}
					records, err := ledger.ListRun(runID)
					if err != nil {
						return err
					}
					return printJSON(records)
				}
				records, err := ledger.List()
				if err != nil {
					return err
				}
				return printJSON(records)
			}),
		}, {
			Name:        "table",
			Description: "commands for managing the backing run-ledger table",
			Subcommands: []*cli.Command{{
				Name:        "ensure",
				Aliases:     []string{"make", "create"},
				Description: "create the table if it doesn't already exist",
				Action: withLedger(func(ledger *Ledger, ctx *cli.Context) error {
					return ledger.EnsureTable()
				}),
			}, {
				Name:        "drop",
				Aliases:     []string{"delete", "destroy"},
				Description: "drop the postgres table",
				Action: withLedger(func(ledger *Ledger, ctx *cli.Context) error {
					return ledger.DropTable()
				}),
			}, {
				Name:        "reset",
				Description: "delete and recreate the postgres table",
				Action: withLedger(func(ledger *Ledger, ctx *cli.Context) error {
					return ledger.ResetTable()
				}),
			}, {
				Name: "clear",
				Description: "clear the rows from the table without " +
					"dropping it",
				Action: withLedger(func(ledger *Ledger, ctx *cli.Context) error {
					return ledger.ClearTable()
				}),
			}},
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runRelease(c *Config, tag string) error {
	pipeline, err := c.Pipeline()
	if err != nil {
		return err
	}
	catalog, err := c.Catalog()
	if err != nil {
		return err
	}
	invocation, err := c.Invocation(tag)
	if err != nil {
		return err
	}

	outcomes, err := pipeline.Run(context.Background(), catalog, invocation)
	if err != nil {
		// denial skips the run; it isn't a failure
		var denied *release.DeniedErr
		if errors.As(err, &denied) {
			return nil
		}
		return err
	}

	if err := printJSON(release.Reports(outcomes)); err != nil {
		return err
	}

	if !release.AllDone(outcomes) {
		failed := 0
		for i := range outcomes {
			if outcomes[i].Failed() {
				failed++
			}
		}
		return fmt.Errorf(
			"release `%s` failed for %d of %d variants",
			tag,
			failed,
			len(outcomes),
		)
	}
	return nil
}

func serve(c *Config) error {
	pipeline, err := c.Pipeline()
	if err != nil {
		return err
	}
	catalog, err := c.Catalog()
	if err != nil {
		return err
	}

	// discover the source context once; every dispatch request reuses it
	invocation, err := c.Invocation("")
	if err != nil {
		return err
	}

	service := dispatch.DispatchService{
		Pipeline:   pipeline,
		Catalog:    catalog,
		Invocation: *invocation,
	}

	log.WithField("addr", c.Addr).Infof("listening for dispatch requests")
	if err := http.ListenAndServe(c.Addr, pz.Register(
		pz.JSONLog(os.Stderr),
		service.Routes()...,
	)); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling to JSON: %w", err)
	}
	if _, err := fmt.Printf("%s\n", data); err != nil {
		return fmt.Errorf("writing JSON to stdout: %w", err)
	}
	return nil
}

func withConfig(f func(*Config, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return f(c, ctx)
	}
}

func withLedger(f func(*Ledger, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		ledger, err := runstore.OpenEnv()
		if err != nil {
			return fmt.Errorf("opening run ledger: %w", err)
		}
		return f(ledger, ctx)
	}
}
