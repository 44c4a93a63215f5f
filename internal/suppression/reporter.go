package suppression

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReportFormat is an output encoding for a suppression report
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatJSON ReportFormat = "json"
)

// OutputColumns is the header of the per-group table
var OutputColumns = []string{
	"dma",
	"state",
	"total_blocks",
	"unique_blocks_to_suppress",
	"total_suppression_records",
	"retention_rate_pct",
}

// FormatFromPath picks the format from a destination's extension
func FormatFromPath(path string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return ReportFormatCSV, nil
	case "xlsx":
		return ReportFormatXLSX, nil
	case "json":
		return ReportFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported report format for %q: use .csv, .xlsx or .json", path)
	}
}

// Reporter encodes a Report
type Reporter struct {
	report *Report
	topN   int
}

// NewReporter creates a reporter including topN rows in each ranking
func NewReporter(report *Report, topN int) *Reporter {
	return &Reporter{report: report, topN: topN}
}

// Generate encodes the report in format
func (r *Reporter) Generate(format ReportFormat) ([]byte, error) {
	switch format {
	case ReportFormatCSV:
		return r.generateCSV()
	case ReportFormatXLSX:
		return r.generateXLSX()
	case ReportFormatJSON:
		return json.MarshalIndent(r.report, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

func groupRow(g GroupStat) []string {
	return []string{
		g.DMA,
		g.State,
		strconv.Itoa(g.TotalBlocks),
		strconv.Itoa(g.UniqueBlocksToSuppress),
		strconv.Itoa(g.TotalSuppressionRecords),
		formatPct(g.RetentionRatePct),
	}
}

// generateCSV writes the full per-group table
func (r *Reporter) generateCSV() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(OutputColumns); err != nil {
		return nil, err
	}
	for _, g := range r.report.Groups {
		if err := writer.Write(groupRow(g)); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// generateXLSX writes the table, the summary and both rankings as sheets
func (r *Reporter) generateXLSX() ([]byte, error) {
	x := excelize.NewFile()
	defer x.Close()

	add := func(name string, header []string, rows [][]interface{}) error {
		if _, err := x.NewSheet(name); err != nil {
			return err
		}
		for c, h := range header {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			if err := x.SetCellStr(name, cell, h); err != nil {
				return err
			}
		}
		for ri, row := range rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, ri+2)
				if err := x.SetCellValue(name, cell, v); err != nil {
					return err
				}
			}
		}
		return nil
	}

	groupRows := func(gs []GroupStat) [][]interface{} {
		rows := make([][]interface{}, len(gs))
		for i, g := range gs {
			rows[i] = []interface{}{
				g.DMA, g.State, g.TotalBlocks, g.UniqueBlocksToSuppress,
				g.TotalSuppressionRecords, roundPct(g.RetentionRatePct),
			}
		}
		return rows
	}

	s := r.report.Summary
	summary := [][]interface{}{
		{"date", r.report.Date},
		{"dmas_affected", s.DMAsAffected},
		{"total_blocks", s.TotalBlocks},
		{"unique_blocks_to_suppress", s.UniqueBlocksToSuppress},
		{"total_suppression_records", s.TotalSuppressionRecords},
		{"overall_retention_pct", roundPct(s.OverallRetentionPct)},
		{"mean_retention_pct", roundPct(s.MeanRetentionPct)},
		{"median_retention_pct", roundPct(s.MedianRetentionPct)},
		{"empty", r.report.Empty},
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]interface{}
	}{
		{"groups", OutputColumns, groupRows(r.report.Groups)},
		{"summary", []string{"metric", "value"}, summary},
		{"top_retention", OutputColumns, groupRows(r.report.TopByRetention(r.topN))},
		{"top_suppression", OutputColumns, groupRows(r.report.TopBySuppression(r.topN))},
	}
	for _, sh := range sheets {
		if err := add(sh.name, sh.header, sh.rows); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", sh.name, err)
		}
	}
	if err := x.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := x.GetSheetIndex("groups"); err == nil {
		x.SetActiveSheet(idx)
	}

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func roundPct(v float64) float64 {
	f, _ := strconv.ParseFloat(formatPct(v), 64)
	return f
}
