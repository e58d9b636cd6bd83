package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// ContentType is the media type of PDF output.
const ContentType = "application/pdf"

// PDF renders s as a one-page A4 document. Creation and modification dates
// are pinned to s.IssuedAt so the bytes are reproducible.
func PDF(s Snapshot) ([]byte, error) {
	doc := Render(s)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(s.IssuedAt.UTC())
	pdf.SetModificationDate(s.IssuedAt.UTC())
	pdf.SetCatalogSort(true)
	pdf.SetTitle(doc.Title+" "+s.RentID.String(), true)
	pdf.SetMargins(25, 20, 25)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, doc.Title, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range doc.Header {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	const descW, amtW, rowH = 110.0, 50.0, 8.0

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(descW, rowH, doc.Columns[0], "TB", 0, "L", false, 0, "")
	pdf.CellFormat(amtW, rowH, doc.Columns[1], "TB", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	for _, it := range doc.Items {
		pdf.CellFormat(descW, rowH, tr(it.Description), "", 0, "L", false, 0, "")
		pdf.CellFormat(amtW, rowH, FormatAmount(it.Amount), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(descW, rowH, doc.Total.Description, "T", 0, "L", false, 0, "")
	pdf.CellFormat(amtW, rowH, FormatAmount(doc.Total.Amount), "T", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, doc.Footer, "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
