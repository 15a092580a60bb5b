package labpdf

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// WorkOrderData carries everything a work order document shows.
type WorkOrderData struct {
	OrderNumber  string
	ClinicName   string
	Veterinarian string
	Items        []WorkOrderItem
	Total        float64
	IssuedAt     time.Time
}

// WorkOrderItem is one billed line.
type WorkOrderItem struct {
	Description string
	Quantity    int
	UnitPrice   float64
}

// Amount returns the line total.
func (i WorkOrderItem) Amount() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// WorkOrder renders a work order as PDF bytes. The QR code carries the order
// number so the front desk can pull the order up by scanning a printout.
func (g *Generator) WorkOrder(data WorkOrderData) ([]byte, error) {
	m := maroto.New()

	m.AddRows(
		row.New(16).Add(
			col.New(12).Add(
				text.New("WORK ORDER", props.Text{
					Align: align.Center,
					Size:  18,
					Style: fontstyle.Bold,
				}),
			),
		),
		row.New(8).Add(
			col.New(12).Add(
				text.New(fmt.Sprintf("Order %s, issued %s", data.OrderNumber, data.IssuedAt.Format("Jan 2, 2006")), props.Text{
					Align: align.Center,
					Size:  11,
				}),
			),
		),
		labeledRow("Clinic:", data.ClinicName),
		labeledRow("Veterinarian:", data.Veterinarian),
	)

	m.AddRows(
		row.New(10).Add(
			col.New(7).Add(text.New("Service", props.Text{Style: fontstyle.Bold, Top: 4})),
			col.New(1).Add(text.New("Qty", props.Text{Style: fontstyle.Bold, Top: 4, Align: align.Right})),
			col.New(2).Add(text.New("Unit", props.Text{Style: fontstyle.Bold, Top: 4, Align: align.Right})),
			col.New(2).Add(text.New("Amount", props.Text{Style: fontstyle.Bold, Top: 4, Align: align.Right})),
		),
	)

	for _, item := range data.Items {
		m.AddRows(
			row.New(8).Add(
				col.New(7).Add(text.New(item.Description, props.Text{Size: 10})),
				col.New(1).Add(text.New(fmt.Sprintf("%d", item.Quantity), props.Text{Size: 10, Align: align.Right})),
				col.New(2).Add(text.New(fmt.Sprintf("%.2f", item.UnitPrice), props.Text{Size: 10, Align: align.Right})),
				col.New(2).Add(text.New(fmt.Sprintf("%.2f", item.Amount()), props.Text{Size: 10, Align: align.Right})),
			),
		)
	}

	m.AddRows(
		row.New(10).Add(
			col.New(10).Add(text.New("TOTAL", props.Text{Style: fontstyle.Bold, Top: 3, Align: align.Right})),
			col.New(2).Add(text.New(fmt.Sprintf("%.2f", data.Total), props.Text{Style: fontstyle.Bold, Top: 3, Align: align.Right})),
		),
	)

	m.AddRows(
		row.New(35).Add(
			col.New(4).Add(
				code.NewQr(data.OrderNumber, props.Rect{Percent: 100}),
			),
			col.New(8).Add(
				text.New("Scan to look up this order at the laboratory.", props.Text{Top: 14}),
			),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate work order PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

// WriteWorkOrder renders the work order and writes it into the spool
// directory, returning the file path for attachment.
func (g *Generator) WriteWorkOrder(data WorkOrderData) (string, error) {
	pdf, err := g.WorkOrder(data)
	if err != nil {
		return "", err
	}
	return g.write(fmt.Sprintf("workorder_%s.pdf", data.OrderNumber), pdf)
}
