package detection

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

var csvHeader = []string{"Timestamp", "Detection Type", "Confidence", "Source"}

// ExportJSON writes ds as an indented JSON array.
func ExportJSON(w io.Writer, ds []Detection) error {
	if ds == nil {
		ds = []Detection{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("encode detections: %w", err)
	}
	return nil
}

// ExportCSV writes ds as CSV rows separated by "\n" with no trailing newline.
func ExportCSV(w io.Writer, ds []Detection) error {
	_, err := io.WriteString(w, FormatCSV(ds))
	return err
}

// FormatCSV renders the CSV table as a string.
func FormatCSV(ds []Detection) string {
	rows := make([]string, 0, len(ds)+1)
	rows = append(rows, joinCSV(csvHeader))
	for _, d := range ds {
		rows = append(rows, joinCSV([]string{
			d.Timestamp.UTC().Format(time.RFC3339Nano),
			d.Type,
			fmt.Sprintf("%.2f", d.Confidence),
			d.Source,
		}))
	}
	return strings.Join(rows, "\n")
}

func joinCSV(fields []string) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = escapeCSV(f)
	}
	return strings.Join(out, ",")
}

func escapeCSV(f string) string {
	if !strings.ContainsAny(f, "\",\n") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}
