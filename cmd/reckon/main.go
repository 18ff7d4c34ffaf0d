// Reckon reconciles metered service usage against CRM contracts and
// turns it into periodic fees.
//
// Usage:
//   reckon ingest -t hpc -s 20170101 -e 20170131 -c conf.json ...
//   reckon calculate-fees -t hpc -s 20170101 -e 20170131 -c conf.json
//   reckon load-prices --file prices.json -d 20170101
//   reckon serve
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/eresearchbill/reckon/internal/catalog"
	catalogdomain "github.com/eresearchbill/reckon/internal/catalog/domain"
	"github.com/eresearchbill/reckon/internal/config"
	"github.com/eresearchbill/reckon/internal/contract"
	"github.com/eresearchbill/reckon/internal/daterange"
	"github.com/eresearchbill/reckon/internal/fee"
	"github.com/eresearchbill/reckon/internal/feed"
	"github.com/eresearchbill/reckon/internal/ingest"
	"github.com/eresearchbill/reckon/internal/logger"
	"github.com/eresearchbill/reckon/internal/migration"
	"github.com/eresearchbill/reckon/internal/observability/metrics"
	"github.com/eresearchbill/reckon/internal/server"
	"github.com/eresearchbill/reckon/internal/usage"
	"github.com/eresearchbill/reckon/pkg/db"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "reckon",
		Usage: "usage-to-fee reconciliation for research computing services",
		Commands: []*cli.Command{
			ingestCommand(),
			ingestContractsCommand(),
			calculateFeesCommand(),
			loadPricesCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func baseOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		logger.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		migration.Module,
		feed.Module,
		metrics.Module,
		catalog.Module,
		contract.Module,
		usage.Module,
		fee.Module,
		ingest.Module,
	}
}

// runOneShot assembles the application, runs the invocation, and tears
// the lifecycle down again.
func runOneShot(invoke fx.Option) error {
	app := fx.New(append(baseOptions(), invoke)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	return app.Stop(stopCtx)
}

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "type",
			Aliases:  []string{"t"},
			Usage:    "resource kind (cloudvm, hostedvm, xfs, hnasvv, hnasfs, hcp, hpc)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "start",
			Aliases:  []string{"s"},
			Usage:    "window start date, YYYYMMDD",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "end",
			Aliases:  []string{"e"},
			Usage:    "window end date, YYYYMMDD (inclusive)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "conf",
			Aliases:  []string{"c"},
			Usage:    "ingestion configuration file",
			Required: true,
			EnvVars:  []string{"RECKON_CONF"},
		},
	}
}

func linkageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "account-json",
			Usage:   "CRM account export used to resolve organisation hierarchy",
			EnvVars: []string{"RECKON_ACCOUNT_JSON"},
		},
		&cli.StringFlag{
			Name:    "contact-json",
			Usage:   "CRM contact export used to resolve managers",
			EnvVars: []string{"RECKON_CONTACT_JSON"},
		},
		&cli.StringFlag{
			Name:    "substitutes",
			Usage:   "product substitution export for composed billing items",
			EnvVars: []string{"RECKON_SUBSTITUTES_JSON"},
		},
	}
}

func optionsFromFlags(c *cli.Context, tz string) (ingest.Options, error) {
	opts := ingest.Options{
		Kind:            c.String("type"),
		ConfigPath:      c.String("conf"),
		AccountJSON:     c.String("account-json"),
		ContactJSON:     c.String("contact-json"),
		SubstitutesJSON: c.String("substitutes"),
		SkipFees:        c.Bool("skip-fee"),
	}

	var err error
	opts.Start, opts.End, err = daterange.Range(c.String("start"), c.String("end"), tz)
	if err != nil {
		return opts, err
	}
	return opts, nil
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Fetch contracts and usage for a window and persist fees",
		Flags: append(append(windowFlags(), linkageFlags()...),
			&cli.BoolFlag{
				Name:  "skip-fee",
				Usage: "ingest usage without computing fees",
			},
		),
		Action: func(c *cli.Context) error {
			return runOneShot(fx.Invoke(func(runner *ingest.Runner, cfg config.Config, log *zap.Logger) error {
				opts, err := optionsFromFlags(c, cfg.Timezone)
				if err != nil {
					return err
				}
				summary, err := runner.Run(c.Context, opts)
				if err != nil {
					return err
				}
				log.Info("ingest done",
					zap.Int("processed", summary.Processed),
					zap.Int("skipped", summary.Skipped),
					zap.Int("fees", summary.Fees),
				)
				return nil
			}))
		},
	}
}

func ingestContractsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest-contracts",
		Usage: "Create orders and orderlines from the contract feed alone",
		Flags: append(windowFlags(), linkageFlags()...),
		Action: func(c *cli.Context) error {
			return runOneShot(fx.Invoke(func(runner *ingest.Runner, cfg config.Config, log *zap.Logger) error {
				opts, err := optionsFromFlags(c, cfg.Timezone)
				if err != nil {
					return err
				}
				summary, err := runner.IngestContracts(c.Context, opts)
				if err != nil {
					return err
				}
				log.Info("contract ingest done",
					zap.Int("processed", summary.Processed),
					zap.Int("skipped", summary.Skipped),
				)
				return nil
			}))
		},
	}
}

func calculateFeesCommand() *cli.Command {
	return &cli.Command{
		Name:  "calculate-fees",
		Usage: "Recompute fees for already-ingested usage in a window",
		Flags: append(windowFlags(),
			&cli.StringFlag{
				Name:    "substitutes",
				Usage:   "product substitution export for composed billing items",
				EnvVars: []string{"RECKON_SUBSTITUTES_JSON"},
			},
		),
		Action: func(c *cli.Context) error {
			return runOneShot(fx.Invoke(func(runner *ingest.Runner, cfg config.Config, log *zap.Logger) error {
				opts, err := optionsFromFlags(c, cfg.Timezone)
				if err != nil {
					return err
				}
				summary, err := runner.CalculateFees(c.Context, opts)
				if err != nil {
					return err
				}
				log.Info("fee calculation done",
					zap.Int("fees", summary.Fees),
					zap.Int("skipped", summary.Skipped),
				)
				return nil
			}))
		},
	}
}

func loadPricesCommand() *cli.Command {
	return &cli.Command{
		Name:  "load-prices",
		Usage: "Load products and effective-dated prices from a CRM price feed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "price feed endpoint",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "price feed export file",
			},
			&cli.StringFlag{
				Name:    "date",
				Aliases: []string{"d"},
				Usage:   "effective date of the loaded prices, YYYYMMDD (default today)",
			},
		},
		Action: func(c *cli.Context) error {
			if (c.String("url") == "") == (c.String("file") == "") {
				return fmt.Errorf("exactly one of --url and --file is required")
			}
			return runOneShot(fx.Invoke(func(svc catalogdomain.Service, client *feed.Client, cfg config.Config, log *zap.Logger) error {
				validFrom := time.Now().Unix()
				if date := c.String("date"); date != "" {
					var err error
					validFrom, err = daterange.ToTimestamp(date, cfg.Timezone)
					if err != nil {
						return err
					}
				}

				records, err := priceRecords(c.Context, client, c.String("url"), c.String("file"))
				if err != nil {
					return err
				}

				summary, err := svc.LoadPriceList(c.Context, records, validFrom)
				if err != nil {
					return err
				}
				log.Info("price list loaded",
					zap.Int("records", summary.Records),
					zap.Int("products_created", summary.ProductsCreated),
					zap.Int("prices_created", summary.PricesCreated),
				)
				return nil
			}))
		},
	}
}

// priceRecords reads the price feed from a URL or a file. File exports
// come either as a bare array or wrapped in an OData "value" envelope.
func priceRecords(ctx context.Context, client *feed.Client, url, file string) ([]map[string]any, error) {
	if url != "" {
		return client.FetchJSON(ctx, url, nil, nil)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var envelope struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("price feed %s: %w", file, err)
	}
	return envelope.Value, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the read-only fee query API",
		Action: func(c *cli.Context) error {
			app := fx.New(append(baseOptions(), server.Module)...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
