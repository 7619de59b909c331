package export

import (
	"fmt"

	"github.com/prospect-scanner/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

// XLSXSheet is the worksheet that holds the exported records.
const XLSXSheet = "Prospects"

// ToXLSX renders records as a single-sheet workbook with the CSV header row.
func ToXLSX(records []models.Prospect) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellStr(XLSXSheet, cell, v)
	}

	for i, h := range models.ProspectColumns {
		if err := write(i+1, 1, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for r, rec := range records {
		// Phone numbers are stored as text so leading zeros survive.
		for c, v := range rec.Fields() {
			if err := write(c+1, r+2, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+2, err)
			}
		}
	}

	_ = f.SetColWidth(XLSXSheet, "A", "A", 28)
	_ = f.SetColWidth(XLSXSheet, "B", "B", 16)
	_ = f.SetColWidth(XLSXSheet, "C", "D", 28)
	_ = f.SetColWidth(XLSXSheet, "E", "E", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
