// Package render lays out an invoice as a PDF document.
package render

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/railzwaylabs/metron/internal/invoice/domain"
)

const dateLayout = "2006-01-02"

// PDF renders the invoice with one table row per line item and a grand
// total. Line periods are printed so a prorated charge is auditable from
// the document alone.
func PDF(invoice *domain.Invoice) ([]byte, error) {
	lines, err := invoice.Lines()
	if err != nil {
		return nil, err
	}

	m := maroto.New(config.NewBuilder().
		WithLeftMargin(15).
		WithRightMargin(15).
		Build())

	m.AddRow(12,
		text.NewCol(8, fmt.Sprintf("Invoice %s", invoice.InvoiceNumber), props.Text{
			Style: fontstyle.Bold,
			Size:  14,
		}),
		text.NewCol(4, invoice.InvoiceDate.Format(dateLayout), props.Text{
			Align: align.Right,
			Size:  10,
		}),
	)
	m.AddRow(8,
		text.NewCol(8, fmt.Sprintf("Customer %s", invoice.CustomerID), props.Text{Size: 9}),
		text.NewCol(4, string(invoice.Status), props.Text{Align: align.Right, Size: 9}),
	)
	m.AddRow(6,
		text.NewCol(12, fmt.Sprintf("Billing period %s to %s",
			invoice.PeriodStart.Format(dateLayout),
			invoice.PeriodEnd.Format(dateLayout),
		), props.Text{Size: 9}),
	)

	m.AddRow(8,
		text.NewCol(5, "Item", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Period", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range lines {
		quantity := ""
		if line.Quantity != nil {
			quantity = fmt.Sprintf("%d", *line.Quantity)
		}
		m.AddRow(7,
			text.NewCol(5, line.Name, props.Text{Size: 9}),
			text.NewCol(3, fmt.Sprintf("%s to %s",
				line.PeriodFrom.Format(dateLayout),
				line.PeriodTo.Format(dateLayout),
			), props.Text{Size: 8}),
			text.NewCol(1, quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, money(line.TotalCents, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRows(row.New(10).Add(
		col.New(9).Add(text.New("Total", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right})),
		col.New(3).Add(text.New(money(invoice.AmountCents, invoice.Currency), props.Text{
			Style: fontstyle.Bold,
			Size:  10,
			Align: align.Right,
		})),
	))

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func money(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}
