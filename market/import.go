package market

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted in the time column of an imported bar file.
var importLayouts = []string{
	"20060102 150405",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

// ImportStats counts the lines ReadBars could not use.
type ImportStats struct {
	Bars     int
	BadLines int
}

// ReadBars parses "time;open;high;low;close[;volume]" lines. Commas work as
// separators too, and a header line starting with "time" is skipped. Lines
// that do not parse are counted, not fatal. Times without a zone are UTC.
func ReadBars(r io.Reader) ([]Candle, ImportStats, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		bars  []Candle
		stats ImportStats
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "time") {
			continue
		}
		sep := ";"
		if !strings.Contains(line, sep) {
			sep = ","
		}
		parts := strings.Split(line, sep)
		if len(parts) < 5 {
			stats.BadLines++
			continue
		}

		ts, ok := parseImportTime(parts[0])
		if !ok {
			stats.BadLines++
			continue
		}

		var vals [5]float64
		bad := false
		for i := 1; i < len(parts) && i <= 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
			if err != nil {
				bad = true
				break
			}
			vals[i-1] = v
		}
		if bad {
			stats.BadLines++
			continue
		}

		bars = append(bars, Candle{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, stats, err
	}

	bars = Clean(bars)
	stats.Bars = len(bars)
	return bars, stats, nil
}

func parseImportTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range importLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
