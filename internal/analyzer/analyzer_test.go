package analyzer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeService struct {
	mu        sync.Mutex
	inflight  int
	maxFlight int
	failName  string
	analyzed  [][]string
	askedDoc  string
}

func (f *fakeService) Upload(_ context.Context, filename string, body io.Reader) (*inference.Extraction, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxFlight {
		f.maxFlight = f.inflight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	time.Sleep(2 * time.Millisecond)
	if filename == f.failName {
		return nil, errors.New("unsupported file type")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return &inference.Extraction{Filename: filename, Content: string(b)}, nil
}

func (f *fakeService) Ask(_ context.Context, question, document string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.askedDoc = document
	return "answer to " + question, nil
}

func (f *fakeService) AnalyzePapers(_ context.Context, documents []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed = append(f.analyzed, documents)
	return "Topics: thermodynamics", nil
}

func papers(names ...string) []File {
	out := make([]File, 0, len(names))
	for _, n := range names {
		out = append(out, File{Name: n, Body: strings.NewReader("content of " + n)})
	}
	return out
}

func TestAddPapersKeepsInputOrder(t *testing.T) {
	svc := &fakeService{}
	a := New(svc, WithUploadLimit(2))

	added, err := a.AddPapers(context.Background(), papers("2019.pdf", "2020.pdf", "2021.pdf", "2022.pdf", "2023.pdf"))
	require.NoError(t, err)
	require.Len(t, added, 5)

	var names []string
	for _, p := range a.Papers() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"2019.pdf", "2020.pdf", "2021.pdf", "2022.pdf", "2023.pdf"}, names)
	assert.LessOrEqual(t, svc.maxFlight, 2)
}

func TestAddPapersSkipsFailedUpload(t *testing.T) {
	svc := &fakeService{failName: "broken.exe"}
	a := New(svc)

	added, err := a.AddPapers(context.Background(), papers("a.pdf", "broken.exe", "b.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.exe")
	assert.Len(t, added, 2)
	assert.Len(t, a.Papers(), 2)
}

func TestAnalyzeRequiresPapers(t *testing.T) {
	a := New(&fakeService{})
	_, err := a.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrNoPapers)
	_, err = a.Ask(context.Background(), "what's next?")
	assert.ErrorIs(t, err, ErrNoPapers)
	assert.ErrorIs(t, a.WriteSummary(filepath.Join(t.TempDir(), "out.txt")), ErrNoSummary)
}

func TestAskUsesSummaryOnceAnalyzed(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{}
	a := New(svc)
	_, err := a.AddPapers(ctx, papers("a.pdf", "b.pdf"))
	require.NoError(t, err)

	_, err = a.Ask(ctx, "which topics?")
	require.NoError(t, err)
	assert.Equal(t, "content of a.pdf\n\ncontent of b.pdf", svc.askedDoc)

	summary, err := a.Analyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Topics: thermodynamics", summary)
	assert.Equal(t, [][]string{{"content of a.pdf", "content of b.pdf"}}, svc.analyzed)

	answer, err := a.Ask(ctx, "  which topics?  ")
	require.NoError(t, err)
	assert.Equal(t, "answer to which topics?", answer)
	assert.Equal(t, summary, svc.askedDoc)

	_, err = a.Ask(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestSaveLoadAndWriteSummary(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := New(&fakeService{})
	_, err := a.AddPapers(ctx, papers("a.pdf"))
	require.NoError(t, err)
	_, err = a.Analyze(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Save(filepath.Join(dir, "papers.json")))

	b := New(&fakeService{})
	require.NoError(t, b.Load(filepath.Join(dir, "papers.json")))
	assert.Equal(t, a.Papers(), b.Papers())
	assert.Equal(t, "Topics: thermodynamics", b.Summary())

	out := filepath.Join(dir, "Question_Paper_Analysis.txt")
	require.NoError(t, b.WriteSummary(out))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Topics: thermodynamics", string(raw))

	b.Clear()
	assert.Empty(t, b.Papers())
	assert.Empty(t, b.Summary())

	c := New(&fakeService{})
	require.NoError(t, c.Load(filepath.Join(dir, "missing.json")))
	assert.Empty(t, c.Papers())
}

func TestNilLoggerFallsBackToNop(t *testing.T) {
	a := New(&fakeService{}, WithLogger(nil))
	_, err := a.AddPapers(context.Background(), papers("a.pdf"))
	require.NoError(t, err)
	_, err = a.Analyze(context.Background())
	require.NoError(t, err)
}
