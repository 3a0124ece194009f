package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DefaultFileName is the report file written when no output is configured.
const DefaultFileName = "missing_files_report.json"

// Encode writes rep as indented JSON. Non-ASCII text and HTML-significant
// characters are written as-is.
func Encode(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// Marshal returns the encoded report bytes.
func Marshal(rep *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rep); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
