package marketdata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"signal-backtest-lab/internal/domain"
)

// Drop reasons reported by CleanReport.
const (
	DropNilRow        = "nil row"
	DropNonFinite     = "non-finite value"
	DropDuplicateTime = "duplicate timestamp"
)

// DroppedRow identifies an input row that Clean discarded.
type DroppedRow struct {
	Index       int // position in the input slice
	TimestampMs int64
	Field       string // set for non-finite rows
	Reason      string
}

// Clean returns the bars that can be simulated, sorted by timestamp.
// Rows with a non-finite field are dropped and, for duplicate timestamps,
// the first row in input order wins. The input slice is not modified.
func Clean(bars []*domain.Bar) []*domain.Bar {
	out, _ := CleanReport(bars)
	return out
}

// CleanReport is Clean that also returns every discarded row in input order.
func CleanReport(bars []*domain.Bar) ([]*domain.Bar, []DroppedRow) {
	seen := make(map[int64]struct{}, len(bars))
	out := make([]*domain.Bar, 0, len(bars))
	var dropped []DroppedRow

	for i, b := range bars {
		if b == nil {
			dropped = append(dropped, DroppedRow{Index: i, Reason: DropNilRow})
			continue
		}
		if field := nonFiniteField(b); field != "" {
			dropped = append(dropped, DroppedRow{Index: i, TimestampMs: b.TimestampMs, Field: field, Reason: DropNonFinite})
			continue
		}
		if _, dup := seen[b.TimestampMs]; dup {
			dropped = append(dropped, DroppedRow{Index: i, TimestampMs: b.TimestampMs, Reason: DropDuplicateTime})
			continue
		}
		seen[b.TimestampMs] = struct{}{}

		barCopy := *b
		out = append(out, &barCopy)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})

	return out, dropped
}

// nonFiniteField names the first NaN or infinite field, or returns "".
func nonFiniteField(b *domain.Bar) string {
	switch {
	case !domain.IsFinite(b.Open):
		return domain.FieldOpen
	case !domain.IsFinite(b.High):
		return domain.FieldHigh
	case !domain.IsFinite(b.Low):
		return domain.FieldLow
	case !domain.IsFinite(b.Close):
		return domain.FieldClose
	case !domain.IsFinite(b.Volume):
		return domain.FieldVolume
	}
	return ""
}

// Resample aggregates sorted bars into buckets of width step, aligned to the Unix epoch.
// Each bucket takes the first open, max high, min low, last close and summed volume,
// and is stamped with its start time. Empty buckets are skipped.
func Resample(bars []*domain.Bar, step time.Duration) ([]*domain.Bar, error) {
	stepMs := step.Milliseconds()
	if stepMs <= 0 {
		return nil, fmt.Errorf("resample step must be positive, got %s", step)
	}

	var out []*domain.Bar
	var cur *domain.Bar
	for _, b := range bars {
		bucket := floorDiv(b.TimestampMs, stepMs) * stepMs
		if cur == nil || cur.TimestampMs != bucket {
			if cur != nil && bucket < cur.TimestampMs {
				return nil, fmt.Errorf("resample input not sorted at ts=%d", b.TimestampMs)
			}
			cur = &domain.Bar{
				TimestampMs: bucket,
				Open:        b.Open,
				High:        b.High,
				Low:         b.Low,
				Close:       b.Close,
				Volume:      b.Volume,
			}
			out = append(out, cur)
			continue
		}
		cur.High = max(cur.High, b.High)
		cur.Low = min(cur.Low, b.Low)
		cur.Close = b.Close
		cur.Volume += b.Volume
	}

	return out, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// ParseInterval converts an interval label such as "15m", "4h", "1d" or "1w" to a duration.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		return d, nil
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return time.Duration(n) * unit, nil
}
