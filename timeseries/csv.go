package timeseries

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNoData is returned when a CSV source has no parseable value.
var ErrNoData = errors.New("no valid data found in CSV")

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	DateColumn  string // Column name for dates (optional)
	ValueColumn string // Column name for values (default: "close")
	IDColumn    string // Column name for instrument ID (optional, for filtering)
	IDFilter    string // Value to filter by ID column
	DateFormat  string // Date format tried first (default: "2006-01-02")
	Delimiter   rune   // Field delimiter (default: ',')
}

// DefaultCSVOptions returns default options for price files.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		ValueColumn: "close",
		DateFormat:  "2006-01-02",
		Delimiter:   ',',
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// LoadCSV loads a time series from a CSV file with a header row.
func LoadCSV(filename string, opts *CSVOptions) (*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	s, err := LoadCSVFromReader(file, opts)
	if err != nil {
		return nil, err
	}
	s.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return s, nil
}

// LoadCSVFromReader loads a time series from an io.Reader. The first row must
// be a header. Rows with missing or unparseable values are skipped;
// timestamps are kept only if every kept row has a parseable date.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	cols := locateColumns(header, opts)

	var values []float64
	var timestamps []time.Time
	datesOK := cols.date >= 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if opts.IDFilter != "" && cols.id >= 0 && cols.id < len(record) &&
			clean(record[cols.id]) != opts.IDFilter {
			continue
		}
		if cols.value >= len(record) {
			continue
		}
		v, ok := parseValue(record[cols.value])
		if !ok {
			continue
		}
		values = append(values, v)

		if datesOK && cols.date < len(record) {
			ts, ok := parseDate(clean(record[cols.date]), opts.DateFormat)
			if ok {
				timestamps = append(timestamps, ts)
				continue
			}
		}
		datesOK = false
	}

	if len(values) == 0 {
		return nil, ErrNoData
	}
	if datesOK && len(timestamps) == len(values) {
		return &Series{Timestamps: timestamps, Values: values}, nil
	}
	return New(values), nil
}

type columns struct {
	value, date, id int
}

func locateColumns(header []string, opts *CSVOptions) columns {
	cols := columns{value: -1, date: -1, id: -1}
	for i, h := range header {
		h = clean(h)
		switch {
		case h == opts.ValueColumn:
			cols.value = i
		case opts.DateColumn != "" && h == opts.DateColumn:
			cols.date = i
		case opts.DateColumn == "" && cols.date == -1 && (h == "date" || h == "Date" || h == "ds" || h == "timestamp"):
			cols.date = i
		case opts.IDColumn != "" && h == opts.IDColumn:
			cols.id = i
		}
	}
	if cols.value == -1 {
		cols.value = len(header) - 1
	}
	return cols
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\""))
}

func parseValue(raw string) (float64, bool) {
	s := clean(raw)
	switch s {
	case "", "NA", "NaN", "null":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseDate(s, preferred string) (time.Time, bool) {
	if preferred != "" {
		if ts, err := time.Parse(preferred, s); err == nil {
			return ts, true
		}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
