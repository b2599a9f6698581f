package flatten

// csv.go — Tabular export of reassembled records.

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// WriteCSV writes the records as one header row plus one row per record, in
// the Columns contract order.
func WriteCSV(w io.Writer, records []*Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rec.values()); err != nil {
			return fmt.Errorf("write record line %d: %w", rec.LineNum, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the records to path, replacing any existing file.
func WriteCSVFile(path string, records []*Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
