package pantry

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const exportTitle = "Groceries needed:"

// ExportText renders the list as a plain-text checklist.
func (l *ShoppingList) ExportText() string {
	var b strings.Builder
	b.WriteString(exportTitle)
	for _, item := range l.items {
		b.WriteString("\n[ ] ")
		b.WriteString(item)
	}
	return b.String()
}

// ExportPDF renders the list as a one-column printable checklist.
func (l *ShoppingList) ExportPDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("FridgeChef Shopping List", true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, exportTitle, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 12)
	if len(l.items) == 0 {
		pdf.CellFormat(0, 8, "Nothing to buy.", "", 1, "L", false, 0, "")
	}
	for _, item := range l.items {
		pdf.CellFormat(8, 8, "", "1", 0, "C", false, 0, "")
		pdf.CellFormat(0, 8, "  "+tr(item), "", 1, "L", false, 0, "")
		pdf.Ln(1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render shopping list pdf: %w", err)
	}
	return nil
}
