package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var blankRun = regexp.MustCompile(`\n{3,}`)

// textParser handles plain-text formats. Line endings become "\n", a
// leading byte-order mark is dropped and blank-line runs collapse to one.
type textParser struct {
	exts []string
}

func (p textParser) CanParse(filename string) bool {
	return slices.Contains(p.exts, strings.ToLower(filepath.Ext(filename)))
}

func (textParser) Parse(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return blankRun.ReplaceAllString(text, "\n\n"), nil
}
