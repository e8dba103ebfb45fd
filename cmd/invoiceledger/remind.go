package main

import (
	"context"

	"github.com/smallbiznis/invoiceledger/internal/clock"
	"github.com/smallbiznis/invoiceledger/internal/config"
	"github.com/smallbiznis/invoiceledger/internal/invoice"
	"github.com/smallbiznis/invoiceledger/internal/invoice/reminder"
	"github.com/smallbiznis/invoiceledger/internal/observability"
	"github.com/smallbiznis/invoiceledger/internal/providers"
	"github.com/smallbiznis/invoiceledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Record every due payment reminder once and exit",
	Long: `remind walks overdue invoices and records the reminder tier that is due
now, notifying the customer through the configured channels. Run it from
cron or a Kubernetes CronJob; concurrent runs are serialized through Redis
when REDIS_ADDR is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var sweeper *reminder.Sweeper
		app := fx.New(
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			clock.Module,

			providers.Module,
			invoice.Module,
			reminder.Module,
			fx.Populate(&sweeper),
			fx.NopLogger,
		)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := app.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = app.Stop(context.Background()) }()

		_, err := sweeper.Run(ctx)
		return err
	},
}

func init() {
	rootCmd.AddCommand(remindCmd)
}
