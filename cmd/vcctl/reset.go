package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	credservice "vcanchor/internal/credential/service"
	requeststore "vcanchor/internal/credential/store/request"
	responsestore "vcanchor/internal/credential/store/response"
	"vcanchor/internal/ledger"
	"vcanchor/internal/platform/config"
	"vcanchor/internal/platform/logger"
	"vcanchor/internal/platform/postgres"
	auditpublisher "vcanchor/pkg/platform/audit/publisher"
	auditpostgres "vcanchor/pkg/platform/audit/store/postgres"
)

func resetStuckCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset-stuck",
		Usage: "return credential responses stuck in PROCESSING to PENDING once",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Minute,
				Usage: "claims older than this are reset",
			},
		},
		Action: func(c *cli.Context) error {
			log := logger.New(c.String("log-level"))
			cfg := config.FromEnv()
			cfg.Database.URL = c.String("database-url")

			db, err := postgres.Open(c.Context, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			publisher := auditpublisher.NewPublisher(auditpostgres.New(db), auditpublisher.WithLogger(log))
			defer publisher.Close()

			svc, err := credservice.New(requeststore.NewPostgres(db), responsestore.NewPostgres(db),
				ledger.NewClient(cfg.Ledger.URL, ledger.WithLogger(log)),
				credservice.WithLogger(log),
				credservice.WithAuditPublisher(publisher),
			)
			if err != nil {
				return err
			}
			n, err := svc.ResetStuck(c.Context, c.Duration("timeout"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "reset %d stuck responses\n", n)
			return err
		},
	}
}
