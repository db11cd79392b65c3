package picking

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF prints a sorted picking list on A4 paper, one row per operation
func RenderPDF(list *List) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, list.Picking.Name, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Routing: %s (%s)   Printed: %s",
		list.Strategy, list.Order, time.Now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	if list.Picking.Origin != "" {
		pdf.CellFormat(0, 5, "Source: "+list.Picking.Origin, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// Column widths sum to the printable width (186mm)
	widths := []float64{10, 62, 84, 30}
	headers := []string{"#", "Location", "Product", "Quantity"}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for i, line := range list.Lines {
		location := ""
		if line.Location != nil {
			location = line.Location.CompleteName
			if location == "" {
				location = line.Location.Name
			}
		}
		product := ""
		if line.Product != nil {
			product = line.Product.Label()
		}

		pdf.CellFormat(widths[0], 6, strconv.Itoa(i+1), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[1], 6, location, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, product, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, strconv.FormatFloat(line.ProductUomQty, 'f', -1, 64), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
