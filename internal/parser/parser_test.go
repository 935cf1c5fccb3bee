package parser_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/studydeck-cli/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileTXT(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello world\nthis is txt"), 0o644))
	out, err := parser.ParseFile(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "hello"), "unexpected output: %q", out)
}

func TestParseMarkdownCollapsesBlankLines(t *testing.T) {
	out, err := parser.ParseReader("notes.MD", strings.NewReader("# Title\r\n\r\n\r\n\r\nBody\n"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody\n", out)
}

func TestParseTextDropsBOM(t *testing.T) {
	out, err := parser.Parse("syllabus.TXT", []byte("\xef\xbb\xbfWeek 1\rWeek 2"))
	require.NoError(t, err)
	assert.Equal(t, "Week 1\nWeek 2", out)
}

func TestParseDocx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Krebs cycle</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := parser.Parse("lecture.docx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Krebs cycle", out)
}

func TestParseUnsupported(t *testing.T) {
	assert.False(t, parser.Supported("slides.pdf"))
	assert.True(t, parser.Supported("notes.markdown"))
	_, err := parser.Parse("slides.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, parser.ErrUnsupported)
}
