// Package marketdata loads and prepares OHLCV bars from files.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"signal-backtest-lab/internal/domain"
)

var (
	// ErrMissingColumn is returned when a required header column is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrNoRows is returned when a file has a header but no data rows.
	ErrNoRows = errors.New("no data rows")
)

// Accepted header names for the timestamp column, in lookup order.
var timestampColumns = []string{"timestamp", "time", "datetime", "date", "time_utc"}

// Timestamp layouts tried after Unix milliseconds, in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path string) ([]*domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// LoadCSV parses OHLCV rows from r.
//
// The first row is a header naming timestamp, open, high, low, close and
// optionally volume, in any order and case. Timestamps are Unix
// milliseconds, RFC 3339, "2006-01-02 15:04:05" or "2006-01-02" (UTC).
// Empty price cells load as NaN so that Clean can drop the row.
// Rows are returned in file order; call Clean to sort and dedupe.
func LoadCSV(r io.Reader) ([]*domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for idx, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = idx
	}

	tsIdx := -1
	for _, name := range timestampColumns {
		if idx, ok := colIdx[name]; ok {
			tsIdx = idx
			break
		}
	}
	if tsIdx == -1 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, "timestamp")
	}

	fields := []string{domain.FieldOpen, domain.FieldHigh, domain.FieldLow, domain.FieldClose}
	for _, col := range fields {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}
	volIdx, hasVolume := colIdx[domain.FieldVolume]

	var bars []*domain.Bar
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		ts, err := parseTimestamp(rec[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d timestamp: %w", line, err)
		}

		b := &domain.Bar{TimestampMs: ts}
		targets := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
		for i, col := range fields {
			v, err := parseNumber(rec[colIdx[col]])
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, col, err)
			}
			*targets[i] = v
		}
		if hasVolume {
			if b.Volume, err = parseNumber(rec[volIdx]); err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, domain.FieldVolume, err)
			}
		}

		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, ErrNoRows
	}
	return bars, nil
}

// parseNumber parses a float cell; an empty cell is missing and loads as NaN.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseTimestamp returns Unix milliseconds for an integer or a supported layout.
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty timestamp")
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}

	return 0, fmt.Errorf("unrecognized timestamp %q", s)
}
