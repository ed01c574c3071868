// Binary classify classifies readings offline, either a single value given on
// the command line or every row of a CSV file.
package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/envdash/uda/export"
	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/narrative"
	"github.com/envdash/uda/quality"
	"github.com/envdash/uda/threshold"
)

const timeFormat = time.RFC3339

var (
	metric   string
	value    string
	deviceID string
	format   string
	output   string
)

func strsToFloats(x []string) ([]float64, error) {
	var numbers []float64
	for _, v := range x {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return numbers, err
		}
		numbers = append(numbers, f)
	}
	return numbers, nil
}

// mean returns NaN for an empty slice.
func mean(x []float64) float64 {
	var total float64
	for _, v := range x {
		total += v
	}
	return total / float64(len(x))
}

// parseHeader reads the column header: timestamp followed by metric names. A
// metric may appear in more than one column.
func parseHeader(header []string, d threshold.Domain) ([]threshold.Metric, error) {
	if len(header) < 2 || strings.TrimSpace(header[0]) != "timestamp" {
		return nil, errors.New("header must be timestamp followed by at least one metric")
	}

	metrics := make([]threshold.Metric, 0, len(header)-1)
	for _, h := range header[1:] {
		m := threshold.Metric(strings.TrimSpace(h))
		if _, err := threshold.Lookup(d, m); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// lineToMeasurement converts one CSV row. Empty cells are skipped and columns
// of the same metric are averaged.
func lineToMeasurement(line []string, metrics []threshold.Metric, d threshold.Domain, deviceID string) (measurement.Measurement, error) {
	if len(line) != len(metrics)+1 {
		return measurement.Measurement{}, fmt.Errorf("line has %d fields, want %d", len(line), len(metrics)+1)
	}

	timestamp, err := time.Parse(timeFormat, strings.TrimSpace(line[0]))
	if err != nil {
		return measurement.Measurement{}, err
	}

	cells := make(map[threshold.Metric][]string)
	for i, m := range metrics {
		if s := strings.TrimSpace(line[i+1]); s != "" {
			cells[m] = append(cells[m], s)
		}
	}

	m := measurement.Measurement{
		DeviceID:  deviceID,
		Domain:    d,
		Timestamp: timestamp,
	}
	for metric, strs := range cells {
		vals, err := strsToFloats(strs)
		if err != nil {
			return measurement.Measurement{}, err
		}
		v := mean(vals)
		m.SetValue(metric, &v)
	}

	if err := m.Validate(); err != nil {
		return measurement.Measurement{}, err
	}
	return m, nil
}

func readCSV(r io.Reader, d threshold.Domain, deviceID string) ([]measurement.Measurement, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	metrics, err := parseHeader(header, d)
	if err != nil {
		return nil, err
	}

	var ms []measurement.Measurement
	for lineNum := 2; ; lineNum++ {
		line, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		m, err := lineToMeasurement(line, metrics, d, deviceID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		ms = append(ms, m)
	}
	return ms, nil
}

func classifyValue(w io.Writer, d threshold.Domain) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) {
		return fmt.Errorf("bad value %q", value)
	}

	m := threshold.Metric(metric)
	if _, err := threshold.ClassifyStrict(d, m, &v); err != nil {
		return err
	}

	res := quality.Assess(d, m, &v)
	fmt.Fprintf(w, "%s (%.1f%%, severity %d)\n", narrative.Summary(res), res.Percentage, res.Severity())
	for _, r := range narrative.RecommendationsFor(d, res.Label()) {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	return nil
}

func writeText(w io.Writer, ms []measurement.Measurement) {
	for _, m := range ms {
		fmt.Fprintf(w, "%v\n  overall: %s\n", m, narrative.Summary(quality.Overall(m.Domain, m.Values())))
	}
}

func classifyFile(w io.Writer, d threshold.Domain, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ms, err := readCSV(f, d, deviceID)
	if err != nil {
		return err
	}

	switch format {
	case "text":
		writeText(w, ms)
		return nil
	case "csv":
		return export.WriteCSV(w, export.Rows(ms))
	case "xlsx":
		return export.WriteXLSX(w, d, export.Rows(ms))
	}
	return fmt.Errorf("unknown format %q, want one of text, csv, xlsx", format)
}

func init() {
	flag.StringVar(&metric, "metric", "", "metric of the value to classify")
	flag.StringVar(&value, "value", "", "value to classify; if set, no CSV file is read")
	flag.StringVar(&deviceID, "device", "csv-import", "device ID to assign to rows of the CSV file")
	flag.StringVar(&format, "format", "text", "output format for a CSV file: text, csv or xlsx")
	flag.StringVar(&output, "o", "", "write output to this file instead of stdout")

	flag.Usage = func() {
		message := `usage: classify [options] domain [csv_file]

Classifies a single value given with -metric and -value, or every row of a CSV
file. The first line of the CSV file is column headers:

  timestamp,metric1,metric2,...

Timestamps must be RFC 3339. Metrics must belong to the domain; a metric named
in several columns is averaged. Empty cells are skipped.

Positional Arguments:
  domain
	one of air, water, soil
  csv_file
	the CSV file to classify (required unless -value is set)

Options:
`

		fmt.Fprint(flag.CommandLine.Output(), message)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || (value == "" && len(args) != 2) {
		flag.Usage()
		os.Exit(2)
	}

	d, ok := threshold.ParseDomain(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown domain %q\n", args[0])
		os.Exit(2)
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	var err error
	if value != "" {
		err = classifyValue(w, d)
	} else {
		err = classifyFile(w, d, args[1])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
