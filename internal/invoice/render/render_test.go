package render

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/metron/internal/invoice/domain"
	"github.com/railzwaylabs/metron/internal/proration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDF(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	full, err := proration.ComputeLine(proration.LineParams{
		Name: "Base fee", RateCents: 9900, Quantity: 1,
		PeriodStart: periodStart, Period: proration.Monthly,
		From: periodStart, To: periodEnd,
	})
	require.NoError(t, err)
	partial, err := proration.ComputeLine(proration.LineParams{
		Name: "Seats", RateCents: 3100, Quantity: 5,
		PeriodStart: periodStart, Period: proration.Monthly,
		From: time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), To: periodEnd,
	})
	require.NoError(t, err)

	invoice := &domain.Invoice{
		ID:            node.Generate(),
		OrgID:         node.Generate(),
		CustomerID:    node.Generate(),
		InvoiceNumber: domain.NewInvoiceNumber(),
		Currency:      "USD",
		Status:        domain.InvoiceStatusFinalized,
		InvoiceDate:   periodStart,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
	}
	require.NoError(t, invoice.SetLines([]proration.Line{*full, *partial}))

	pdf, err := PDF(invoice)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "99.00 USD", money(9900, "USD"))
	assert.Equal(t, "0.05 USD", money(5, "USD"))
	assert.Equal(t, "-12.34 EUR", money(-1234, "EUR"))
}
