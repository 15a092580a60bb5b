package labpdf

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReportData carries everything a diagnostic report document shows.
type ReportData struct {
	ReportID     string
	Protocol     string
	Kind         string // cytology or histopathology
	PatientName  string
	Species      string
	Breed        string
	OwnerName    string
	Veterinarian string
	ClinicName   string
	Material     string
	Findings     []ReportSection
	Diagnosis    string
	Comments     string
	Pathologist  string
	FinalizedAt  time.Time
}

// ReportSection is one titled block of report text.
type ReportSection struct {
	Title string
	Text  string
}

// DiagnosticReport renders a finalized report as PDF bytes.
func (g *Generator) DiagnosticReport(data ReportData) ([]byte, error) {
	m := maroto.New()

	m.AddRows(
		row.New(16).Add(
			col.New(12).Add(
				text.New("VETERINARY DIAGNOSTIC REPORT", props.Text{
					Align: align.Center,
					Size:  18,
					Style: fontstyle.Bold,
				}),
			),
		),
		row.New(8).Add(
			col.New(12).Add(
				text.New(fmt.Sprintf("Protocol %s (%s)", data.Protocol, data.Kind), props.Text{
					Align: align.Center,
					Size:  11,
				}),
			),
		),
	)

	m.AddRows(
		sectionHeader("PATIENT"),
		labeledRow("Patient:", fmt.Sprintf("%s (%s, %s)", data.PatientName, data.Species, data.Breed)),
		labeledRow("Owner:", data.OwnerName),
		labeledRow("Veterinarian:", data.Veterinarian),
		labeledRow("Clinic:", data.ClinicName),
		labeledRow("Material:", data.Material),
	)

	m.AddRows(sectionHeader("FINDINGS"))
	for _, section := range data.Findings {
		m.AddRows(
			row.New(8).Add(
				col.New(12).Add(text.New(section.Title, props.Text{Style: fontstyle.Bold, Top: 2})),
			),
			row.New(14).Add(
				col.New(12).Add(text.New(section.Text, props.Text{Size: 10})),
			),
		)
	}

	m.AddRows(
		sectionHeader("DIAGNOSIS"),
		row.New(12).Add(
			col.New(12).Add(text.New(data.Diagnosis, props.Text{Style: fontstyle.Bold, Size: 11})),
		),
	)

	if data.Comments != "" {
		m.AddRows(
			sectionHeader("COMMENTS"),
			row.New(12).Add(
				col.New(12).Add(text.New(data.Comments, props.Text{Size: 10})),
			),
		)
	}

	m.AddRows(
		row.New(14).Add(
			col.New(6).Add(text.New(data.Pathologist, props.Text{Top: 6, Style: fontstyle.Bold})),
			col.New(6).Add(text.New(data.FinalizedAt.Format("Jan 2, 2006"), props.Text{
				Top:   6,
				Align: align.Right,
			})),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate report PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

// WriteDiagnosticReport renders the report and writes it into the spool
// directory, returning the file path for attachment.
func (g *Generator) WriteDiagnosticReport(data ReportData) (string, error) {
	pdf, err := g.DiagnosticReport(data)
	if err != nil {
		return "", err
	}
	return g.write(fmt.Sprintf("report_%s.pdf", data.ReportID), pdf)
}

func sectionHeader(title string) core.Row {
	return row.New(10).Add(
		col.New(12).Add(text.New(title, props.Text{Style: fontstyle.Bold, Top: 4})),
	)
}

func labeledRow(label, value string) core.Row {
	return row.New(7).Add(
		col.New(4).Add(text.New(label, props.Text{Size: 10})),
		col.New(8).Add(text.New(value, props.Text{Size: 10, Style: fontstyle.Bold})),
	)
}
