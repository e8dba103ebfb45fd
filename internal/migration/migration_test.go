package migration

import (
	"testing"

	"github.com/smallbiznis/invoiceledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFallsBackToAutoMigrate(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, Run(conn))

	for _, table := range []string{
		"invoices", "invoice_line_items", "invoice_payments",
		"invoice_reminders", "invoice_notes", "invoice_sequences",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	// Idempotent.
	require.NoError(t, Run(conn))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	src, err := newSource()
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	var versions []uint
	for {
		versions = append(versions, version)
		_, _, err := src.ReadUp(version)
		require.NoError(t, err)
		_, _, err = src.ReadDown(version)
		require.NoError(t, err)
		next, err := src.Next(version)
		if err != nil {
			break
		}
		version = next
	}
	assert.Equal(t, []uint{1, 2}, versions)
}

func TestRunRequiresHandle(t *testing.T) {
	assert.Error(t, Run(nil))
	assert.Error(t, RunMigrations(nil))
}
