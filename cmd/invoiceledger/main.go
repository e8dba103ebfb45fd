package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "invoiceledger",
	Short: "Invoice ledger service",
	Long: `invoiceledger keeps invoices, their payments and reminders consistent.

Configuration is read from the environment (and .env). Reminder thresholds
are read from reminder.yml.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "invoiceledger: %v\n", err)
		os.Exit(1)
	}
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
