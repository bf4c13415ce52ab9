// Package report writes the finished analysis table to its destination: a
// local CSV file or an S3 object.
//
// Reports are CSV with a leading UTF-8 byte order mark and CRLF line
// endings so spreadsheet applications open Hebrew text correctly.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-tally/internal/ports"
)

// ContentType is the MIME type of an encoded report.
const ContentType = "text/csv; charset=utf-8"

// utf8BOM is written before the first row.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Package-level validator instance for sink configuration validation.
var validate = validator.New()

// Encode writes rows to w as CSV, preceded by a UTF-8 byte order mark.
// It returns ports.ErrEmptyReport when rows is empty.
func Encode(w io.Writer, rows [][]string) error {
	if len(rows) == 0 {
		return ports.ErrEmptyReport
	}
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write byte order mark: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into a new buffer.
func EncodeBytes(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
