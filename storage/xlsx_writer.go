package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"rca-rates/models"
)

const (
	sheetData    = "Data"
	sheetSummary = "Summary"
	sheetGaps    = "Gaps"
	sheetRanges  = "Missing Ranges"
	sheetCodes   = "Feature Codes"
	sheetRun     = "Run"
)

// Workbook bundles everything exported to the XLSX file. Summary and Gaps
// may be nil and FeatureKeys empty; the Data sheet is always written.
type Workbook struct {
	Records     []models.CanonicalRateRecord
	Summary     *models.SummaryReport
	Gaps        *models.GapReport
	FeatureKeys []models.FeatureKeyInfo
	Stats       models.RunStats
}

// WriteWorkbook saves the run as one XLSX file with a sheet per table.
func WriteWorkbook(path string, wb Workbook) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetData); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("xlsx: create header style: %w", err)
	}

	dataRows := make([][]string, 0, len(wb.Records))
	for _, r := range wb.Records {
		dataRows = append(dataRows, DumpRow(r))
	}
	if err := writeSheet(f, sheetData, DumpHeader, dataRows, headerStyle, map[int]bool{6: true, 9: true, 10: true}); err != nil {
		return err
	}

	if wb.Summary != nil {
		if _, err := f.NewSheet(sheetSummary); err != nil {
			return fmt.Errorf("xlsx: create sheet: %w", err)
		}
		header := SummaryHeader(wb.Summary.Aggregation)
		rows := make([][]string, 0, len(wb.Summary.Rows))
		for _, r := range wb.Summary.Rows {
			rows = append(rows, SummaryRow(r))
		}
		numeric := map[int]bool{3: true, 4: true, 5: true}
		for i := 10; i < len(header); i++ {
			if i != 13 && i != 14 {
				numeric[i] = true
			}
		}
		if err := writeSheet(f, sheetSummary, header, rows, headerStyle, numeric); err != nil {
			return err
		}
	}

	if wb.Gaps != nil {
		if _, err := f.NewSheet(sheetGaps); err != nil {
			return fmt.Errorf("xlsx: create sheet: %w", err)
		}
		header := []string{"Store", "Store ID", "Window Days", "Missing Days", "Missing Ranges", "Coverage %", "Estimated Cost"}
		rows := make([][]string, 0, len(wb.Gaps.Stores))
		for _, g := range wb.Gaps.Stores {
			rows = append(rows, []string{
				g.StoreName,
				string(g.StoreID),
				strconv.Itoa(g.WindowDays),
				strconv.Itoa(g.MissingDays),
				strconv.Itoa(len(g.Ranges)),
				strconv.FormatFloat(g.CoveragePct, 'f', 1, 64),
				strconv.FormatFloat(g.EstimatedCost, 'f', 2, 64),
			})
		}
		numeric := map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}
		if err := writeSheet(f, sheetGaps, header, rows, headerStyle, numeric); err != nil {
			return err
		}

		if _, err := f.NewSheet(sheetRanges); err != nil {
			return fmt.Errorf("xlsx: create sheet: %w", err)
		}
		missing := wb.Gaps.MissingRanges()
		rangeRows := make([][]string, 0, len(missing))
		for _, m := range missing {
			rangeRows = append(rangeRows, []string{
				string(m.StoreID),
				formatDate(m.Start),
				formatDate(m.End),
				strconv.Itoa(m.Days()),
			})
		}
		if err := writeSheet(f, sheetRanges, []string{"Store ID", "Start", "End", "Days"}, rangeRows, headerStyle, map[int]bool{3: true}); err != nil {
			return err
		}
	}

	if len(wb.FeatureKeys) > 0 {
		if _, err := f.NewSheet(sheetCodes); err != nil {
			return fmt.Errorf("xlsx: create sheet: %w", err)
		}
		header := []string{"Size", "Climate Controlled", "Drive Up", "Suggested", "Code", "Overridden", "Records"}
		rows := make([][]string, 0, len(wb.FeatureKeys))
		for _, k := range wb.FeatureKeys {
			rows = append(rows, []string{
				k.Key.Size,
				formatBool(k.Key.ClimateControlled),
				formatBool(k.Key.DriveUp),
				k.Suggested,
				k.Code,
				formatBool(k.Overridden),
				strconv.Itoa(k.Count),
			})
		}
		if err := writeSheet(f, sheetCodes, header, rows, headerStyle, map[int]bool{6: true}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetRun); err != nil {
		return fmt.Errorf("xlsx: create sheet: %w", err)
	}
	s := wb.Stats
	runRows := [][]string{
		{"Run ID", s.RunID},
		{"Stores Analysed", strconv.Itoa(s.StoresAnalysed)},
		{"Total Records", strconv.Itoa(s.TotalRecords)},
		{"DB Records", strconv.Itoa(s.DBRecords)},
		{"API Records", strconv.Itoa(s.APIRecords)},
		{"Non-Unit Records Dropped", strconv.Itoa(s.DroppedNonUnit)},
		{"Ranges Fetched", strconv.Itoa(s.RangesFetched)},
		{"Ranges Failed", strconv.Itoa(s.RangesFailed)},
		{"Ranges Skipped", strconv.Itoa(s.RangesSkipped)},
		{"Partial Fetch", formatBool(s.PartialFetch)},
	}
	if err := writeSheet(f, sheetRun, []string{"Metric", "Value"}, runRows, headerStyle, nil); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", path, err)
	}
	return nil
}

// writeSheet writes a header and rows. Columns flagged numeric are stored as
// numbers when they parse; blanks stay blank.
func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int, numeric map[int]bool) error {
	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return fmt.Errorf("xlsx: %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("xlsx: %s header style: %w", sheet, err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
			if numeric[j] && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cells[j] = n
				}
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("xlsx: %s row %d: %w", sheet, i+2, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheet, "A", lastCol, 15)
}
