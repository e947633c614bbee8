package report

import (
	"bufio"
	"io"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"Session Start", "Device", "Plane", "Duration", "Status", "Last Update"}

// FileName embeds the export date, e.g. flight-sessions-2025-06-01.csv.
func FileName(t time.Time) string {
	return "flight-sessions-" + t.Format("2006-01-02") + ".csv"
}

// WriteCSV writes a header and one line per row. Every field is quoted,
// including empty ones, and times are rendered in loc. It returns the number
// of data rows written.
func WriteCSV(w io.Writer, rows []Row, loc *time.Location) (int, error) {
	if loc == nil {
		loc = time.UTC
	}
	bw := bufio.NewWriter(w)

	if err := writeRecord(bw, csvHeader); err != nil {
		return 0, err
	}

	written := 0
	for _, r := range rows {
		lastUpdate := ""
		if r.LastUpdate != nil {
			lastUpdate = r.LastUpdate.In(loc).Format(timeLayout)
		}
		record := []string{
			r.SessionStart.In(loc).Format(timeLayout),
			r.Device,
			r.Plane,
			r.Duration,
			string(r.Status),
			lastUpdate,
		}
		if err := writeRecord(bw, record); err != nil {
			return written, err
		}
		written++
	}

	return written, bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
