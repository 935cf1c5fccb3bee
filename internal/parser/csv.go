package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

// Parse renders each record as "header: value" pairs so a question about
// a row reads naturally.
func (csvParser) Parse(content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	if bytes.Count(content, []byte("\t")) > bytes.Count(content, []byte(",")) {
		r.Comma = '\t'
	}
	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	header := records[0]
	var b strings.Builder
	for i, rec := range records[1:] {
		fmt.Fprintf(&b, "Row %d:", i+1)
		for j, v := range rec {
			name := fmt.Sprintf("col%d", j+1)
			if j < len(header) && strings.TrimSpace(header[j]) != "" {
				name = strings.TrimSpace(header[j])
			}
			fmt.Fprintf(&b, " %s: %s;", name, strings.TrimSpace(v))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
