package main

import (
	"github.com/smallbiznis/invoiceledger/internal/clock"
	"github.com/smallbiznis/invoiceledger/internal/config"
	"github.com/smallbiznis/invoiceledger/internal/invoice"
	"github.com/smallbiznis/invoiceledger/internal/invoiceoverview"
	"github.com/smallbiznis/invoiceledger/internal/migration"
	"github.com/smallbiznis/invoiceledger/internal/observability"
	"github.com/smallbiznis/invoiceledger/internal/providers"
	"github.com/smallbiznis/invoiceledger/internal/server"
	"github.com/smallbiznis/invoiceledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			clock.Module,
			migration.Module,

			providers.Module,
			invoice.Module,
			invoiceoverview.Module,
			server.Module,
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
