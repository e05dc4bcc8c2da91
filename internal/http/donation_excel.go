package httpapi

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"bloodbank/internal/domain"
)

// donationExportColumns header and width per column; Rh is dropped for plasma.
var donationExportColumns = []struct {
	header string
	width  float64
}{
	{"Bag ID", 10},
	{"Donor Name", 28},
	{"Blood Type", 12},
	{"Rh", 6},
	{"Amount (ml)", 14},
	{"Expiration Date", 16},
	{"Status", 12},
}

// GenerateDonationExport renders records as a single-sheet workbook named after the
// component type.
func GenerateDonationExport(ct domain.ComponentType, records []domain.DonationRecord) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close is called explicitly on every path

	sheetName := string(ct)
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	col := 0
	for _, c := range donationExportColumns {
		if c.header == "Rh" && !ct.HasRh() {
			continue
		}
		col++
		cell, err := excelize.CoordinatesToCellName(col, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, c.header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, c.width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, d := range records {
		row := i + 2
		values := []any{d.BagID, d.DonorName, string(d.BloodType)}
		if ct.HasRh() {
			values = append(values, string(d.Rh))
		}
		status := "Active"
		if !d.Active {
			status = "Deleted"
		}
		values = append(values, d.AmountMl, d.ExpirationDate.Format(domain.DateLayout), status)

		for j, v := range values {
			if err := setCellValue(f, sheetName, j+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, j+1, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
