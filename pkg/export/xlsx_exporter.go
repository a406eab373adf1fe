package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

// XLSXExporter renders reports as a workbook: a summary sheet plus one sheet per dataset.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render builds the workbook in memory.
func (e *XLSXExporter) Render(report Report) ([]byte, error) {
	if err := validate(report); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	row := 1
	if report.Title != "" {
		if err := f.SetCellValue(summarySheet, "A1", report.Title); err != nil {
			return nil, err
		}
		_ = f.SetCellStyle(summarySheet, "A1", "A1", bold)
		row = 3
	}
	for _, field := range report.Summary {
		if err := setRow(f, summarySheet, row, []string{field.Label, field.Value}); err != nil {
			return nil, err
		}
		row++
	}

	for i, ds := range report.Datasets {
		name := sheetName(ds.Name, i)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := setRow(f, name, 1, ds.Headers); err != nil {
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(ds.Headers), 1)
		_ = f.SetCellStyle(name, "A1", last, bold)
		for r, values := range ds.Rows {
			record := make([]string, len(ds.Headers))
			for j, header := range ds.Headers {
				record[j] = values[header]
			}
			if err := setRow(f, name, r+2, record); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	record := make([]interface{}, len(values))
	for i, v := range values {
		record[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &record); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// sheetName keeps names within the 31 character limit and unique per dataset.
func sheetName(name string, index int) string {
	if name == "" || name == summarySheet {
		name = fmt.Sprintf("Table %d", index+1)
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
