package dashboard

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFFileName is the download name for the PDF report.
const PDFFileName = "datos_cantones_filtrados.pdf"

var pdfColumnWidths = []float64{30, 38, 30, 24, 30, 24, 30}

// WritePDF renders the table and summary as a landscape A4 report.
func WritePDF(w io.Writer, title string, rows []Row, summary Summary) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Total hospitales (registro espacial): %d", summary.TotalHospitals)))
	pdf.Ln(7)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Total población (suma POB_2015): %d", summary.TotalPopulation)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range TableHeaders {
		pdf.CellFormat(pdfColumnWidths[i], 7, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		for i, v := range r.Display() {
			align := "R"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(pdfColumnWidths[i], 6, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}
