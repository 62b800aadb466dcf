package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

// SheetName is the worksheet the records are written to.
const SheetName = "長照紀錄"

type column struct {
	header string
	width  float64
	value  func(row) string
}

var excelColumns = []column{
	{"日期時間", 20, func(r row) string { return r.Date }},
	{"姓名", 10, func(r row) string { return r.Name }},
	{"年齡", 8, func(r row) string { return r.Age }},
	{"房號", 8, func(r row) string { return r.Room }},
	{"早餐", 10, func(r row) string { return r.Breakfast }},
	{"午餐", 10, func(r row) string { return r.Lunch }},
	{"晚餐", 10, func(r row) string { return r.Dinner }},
	{"喝水量(ml)", 12, func(r row) string { return r.Water }},
	{"收縮壓", 10, func(r row) string { return r.Systolic }},
	{"舒張壓", 10, func(r row) string { return r.Diastolic }},
	{"血壓", 12, func(r row) string { return r.BloodPressure }},
	{"脈搏(次/分)", 12, func(r row) string { return r.Pulse }},
	{"體溫(°C)", 12, func(r row) string { return r.Temp }},
	{"睡眠狀況", 12, func(r row) string { return r.Sleep }},
	{"備註", 30, func(r row) string { return r.Note }},
}

// ExcelHeaders returns the spreadsheet column headers in order.
func ExcelHeaders() []string {
	headers := make([]string, len(excelColumns))
	for i, c := range excelColumns {
		headers[i] = c.header
	}
	return headers
}

// WriteExcel writes the records as an .xlsx workbook with one sheet.
func WriteExcel(w io.Writer, records []record.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headers := make([]any, len(excelColumns))
	for i, c := range excelColumns {
		headers[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, c.width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(excelColumns), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range records {
		r := flatten(rec)
		values := make([]any, len(excelColumns))
		for j, c := range excelColumns {
			values[j] = c.value(r)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
