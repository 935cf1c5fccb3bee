// Package parser extracts plain text from study documents locally, for when
// the inference service should not see the raw file.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrUnsupported indicates a format that needs the remote extractor.
var ErrUnsupported = errors.New("unsupported document format")

// Parser defines a document parser implementation.
type Parser interface {
	CanParse(filename string) bool
	Parse(content []byte) (string, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

func lookup(filename string) Parser {
	for _, p := range registry {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Supported reports whether filename can be extracted locally.
func Supported(filename string) bool {
	return lookup(filename) != nil
}

// Parse extracts the text of content using the parser for filename's
// extension.
func Parse(filename string, content []byte) (string, error) {
	p := lookup(filename)
	if p == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(filename))
	}
	return p.Parse(content)
}

// ParseReader reads r fully and parses it as filename.
func ParseReader(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	return Parse(filename, data)
}

// ParseFile selects a parser based on the file name and returns its text.
func ParseFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return Parse(path, data)
}

func init() {
	Register(textParser{exts: []string{".txt", ".text"}})
	Register(textParser{exts: []string{".md", ".markdown"}})
	Register(docxParser{})
	Register(csvParser{})
}
