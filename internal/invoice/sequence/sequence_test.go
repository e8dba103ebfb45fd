package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/invoiceledger/internal/clock"
	"github.com/smallbiznis/invoiceledger/internal/config"
	"github.com/smallbiznis/invoiceledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNextInvoiceNumber(t *testing.T) {
	db := dbtest.Open(t, &Counter{})
	clk := clock.NewFakeClock(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC))
	cfg := config.Config{Invoice: config.InvoiceConfig{NumberPrefix: "ACME"}}
	alloc := New(Params{DB: db, Clock: clk, Config: cfg, Log: zap.NewNop()})
	ctx := context.Background()

	first, err := alloc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACME-202603-00001", first)

	second, err := alloc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACME-202603-00002", second)

	clk.Advance(2 * time.Hour)
	april, err := alloc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACME-202604-00001", april)
}

func TestNextInvoiceNumber_Unique(t *testing.T) {
	db := dbtest.Open(t, &Counter{})
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	alloc := New(Params{DB: db, Clock: clk, Config: config.Config{}, Log: zap.NewNop()})

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n, err := alloc.NextInvoiceNumber(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
	assert.True(t, seen["INV-202605-00050"])
}
