package main

import (
	"context"

	"github.com/smallbiznis/invoiceledger/internal/config"
	"github.com/smallbiznis/invoiceledger/internal/migration"
	"github.com/smallbiznis/invoiceledger/internal/observability"
	"github.com/smallbiznis/invoiceledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			config.Module,
			observability.Module,
			db.Module,
			fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
				if err := migration.Run(conn); err != nil {
					return err
				}
				log.Info("database migrated")
				return nil
			}),
			fx.NopLogger,
		)
		return runOnce(cmd.Context(), app)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// runOnce starts the app so its invokes run, then stops it.
func runOnce(ctx context.Context, app *fx.App) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(context.Background())
}
