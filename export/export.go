// Package export writes classified reading history as CSV or Excel files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/quality"
	"github.com/envdash/uda/threshold"
)

const timeLayout = "2006-01-02 15:04:05"

var header = []string{"Timestamp", "Device", "Metric", "Value", "Unit", "Label", "Percentage"}

// Row is one classified metric of one reading.
type Row struct {
	Timestamp  time.Time
	DeviceID   string
	Result     *quality.Result
	Name, Unit string
}

// Rows classifies every metric of every measurement, ordered by time, then
// device, then the domain's metric order.
func Rows(ms []measurement.Measurement) []Row {
	sorted := make([]measurement.Measurement, len(ms))
	copy(sorted, ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].DeviceID < sorted[j].DeviceID
	})

	var rows []Row
	for _, m := range sorted {
		for _, r := range quality.AssessAll(m.Domain, m.Values()) {
			name, unit := string(r.Metric), ""
			if t, err := threshold.Lookup(r.Domain, r.Metric); err == nil {
				name, unit = t.Name, t.Unit
			}
			rows = append(rows, Row{
				Timestamp: m.Timestamp,
				DeviceID:  m.DeviceID,
				Result:    r,
				Name:      name,
				Unit:      unit,
			})
		}
	}
	return rows
}

func (r Row) record() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.DeviceID,
		r.Name,
		strconv.FormatFloat(r.Result.Value, 'f', -1, 64),
		r.Unit,
		r.Result.Label(),
		strconv.FormatFloat(r.Result.Percentage, 'f', 1, 64),
	}
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// hex formats a band color for an excelize fill.
func hex(c threshold.RGBA) string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// WriteXLSX writes rows to a workbook with one sheet named after the domain.
// Label cells are filled with the band color.
func WriteXLSX(w io.Writer, d threshold.Domain, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := string(d)
	if sheet == "" {
		sheet = "readings"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	f.SetDocProps(&excelize.DocProperties{
		Creator:     "UDA",
		Title:       fmt.Sprintf("%s readings", d),
		Created:     time.Now().UTC().Format(time.RFC3339),
		Description: "Classified sensor readings",
	})

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	f.SetCellStyle(sheet, "A1", last, headerStyle)

	// One style per band color.
	styles := make(map[threshold.RGBA]int)
	for i, r := range rows {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.Timestamp.UTC().Format(timeLayout))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.DeviceID)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.Name)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.Result.Value)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.Unit)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.Result.Label())
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.Result.Percentage)

		c := r.Result.Band.Color
		style, ok := styles[c]
		if !ok {
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Color: []string{hex(c)}, Pattern: 1},
			})
			if err != nil {
				return err
			}
			styles[c] = style
		}
		cell := fmt.Sprintf("F%d", row)
		f.SetCellStyle(sheet, cell, cell, style)
	}

	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "B", "C", 16)
	f.SetColWidth(sheet, "F", "F", 26)

	_, err = f.WriteTo(w)
	return err
}
