package ingest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrorRecord is a rejected source row and the reason it was rejected.
type ErrorRecord struct {
	Values []string
	Reason string
}

// WriteErrorCSV writes the rejected rows to path. The header line is the
// source header plus "error"; every value is written as a JSON string so
// embedded commas, quotes and newlines survive. Lines are joined with "\n".
func WriteErrorCSV(path string, header []string, records []ErrorRecord) error {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(append(append([]string{}, header...), "error"), ","))

	for _, rec := range records {
		cells := make([]string, 0, len(header)+1)
		for i := range header {
			var v string
			if i < len(rec.Values) {
				v = rec.Values[i]
			}
			cells = append(cells, jsonString(v))
		}
		cells = append(cells, jsonString(rec.Reason))
		lines = append(lines, strings.Join(cells, ","))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "ingest: create error report dir %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write error report %s", path)
	}
	return nil
}

// jsonString quotes s as a JSON string literal without HTML escaping.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
