// Package analyzer collects past exam papers and asks the inference service
// for a trend analysis of them.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/inference"
	"github.com/KaramelBytes/studydeck-cli/internal/logging"
	"github.com/KaramelBytes/studydeck-cli/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultUploadLimit = 4

var (
	ErrNoPapers      = errors.New("please upload at least one question paper first")
	ErrNoSummary     = errors.New("no analysis available")
	ErrEmptyQuestion = errors.New("please enter a question")
)

// Service is the part of the inference client the analyzer uses.
type Service interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*inference.Extraction, error)
	Ask(ctx context.Context, question, document string) (string, error)
	AnalyzePapers(ctx context.Context, documents []string) (string, error)
}

type Paper struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// File is a paper waiting to be uploaded.
type File struct {
	Name string
	Body io.Reader
}

// State is what gets persisted between runs.
type State struct {
	Papers     []Paper   `json:"papers"`
	Summary    string    `json:"summary"`
	AnalyzedAt time.Time `json:"analyzedAt,omitempty"`
}

type Analyzer struct {
	ai    Service
	log   *zap.Logger
	limit int
	now   func() time.Time

	mu    sync.Mutex
	state State
}

type Option func(*Analyzer)

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.log = logging.OrNop(l) }
}

// WithUploadLimit caps the number of concurrent uploads.
func WithUploadLimit(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.limit = n
		}
	}
}

func New(ai Service, opts ...Option) *Analyzer {
	a := &Analyzer{ai: ai, log: zap.NewNop(), limit: defaultUploadLimit, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddPapers extracts the text of every file concurrently and appends the
// papers in input order. A failed upload is skipped; its error is returned
// joined with the others once all uploads finish.
func (a *Analyzer) AddPapers(ctx context.Context, files []File) ([]Paper, error) {
	results := make([]*Paper, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			ex, err := a.ai.Upload(gctx, f.Name, f.Body)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", f.Name, err)
				a.log.Warn("paper upload failed", zap.String("file", f.Name), zap.Error(err))
				return nil
			}
			name := ex.Filename
			if name == "" {
				name = f.Name
			}
			results[i] = &Paper{Name: name, Content: ex.Content}
			return nil
		})
	}
	_ = g.Wait()

	var added []Paper
	for _, p := range results {
		if p != nil {
			added = append(added, *p)
		}
	}
	a.mu.Lock()
	a.state.Papers = append(a.state.Papers, added...)
	a.mu.Unlock()
	return added, errors.Join(errs...)
}

// Analyze sends every paper to the inference service and keeps the summary.
func (a *Analyzer) Analyze(ctx context.Context) (string, error) {
	docs := a.contents()
	if len(docs) == 0 {
		return "", ErrNoPapers
	}
	summary, err := a.ai.AnalyzePapers(ctx, docs)
	if err != nil {
		return "", fmt.Errorf("analyze papers: %w", err)
	}
	a.mu.Lock()
	a.state.Summary = summary
	a.state.AnalyzedAt = a.now()
	a.mu.Unlock()
	a.log.Info("papers analyzed", zap.Int("papers", len(docs)), zap.Int("summary_chars", len(summary)))
	return summary, nil
}

// Ask answers a question about the analysis, or about the raw papers when
// no analysis has been made yet.
func (a *Analyzer) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	a.mu.Lock()
	doc := a.state.Summary
	a.mu.Unlock()
	if doc == "" {
		docs := a.contents()
		if len(docs) == 0 {
			return "", ErrNoPapers
		}
		doc = strings.Join(docs, "\n\n")
	}
	answer, err := a.ai.Ask(ctx, question, doc)
	if err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	return answer, nil
}

func (a *Analyzer) contents() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	docs := make([]string, 0, len(a.state.Papers))
	for _, p := range a.state.Papers {
		docs = append(docs, p.Content)
	}
	return docs
}

func (a *Analyzer) Papers() []Paper {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Paper(nil), a.state.Papers...)
}

func (a *Analyzer) Summary() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Summary
}

// Clear drops all papers and the analysis.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{}
}

// Save persists papers and analysis as JSON at path.
func (a *Analyzer) Save(path string) error {
	a.mu.Lock()
	st := a.state
	st.Papers = append([]Paper(nil), st.Papers...)
	a.mu.Unlock()
	return utils.WriteJSON(path, st)
}

// Load restores state saved by Save. A missing file leaves the analyzer
// empty.
func (a *Analyzer) Load(path string) error {
	var st State
	found, err := utils.ReadJSON(path, &st)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	a.mu.Lock()
	a.state = st
	a.mu.Unlock()
	return nil
}

// WriteSummary writes the analysis as plain text.
func (a *Analyzer) WriteSummary(path string) error {
	summary := a.Summary()
	if summary == "" {
		return ErrNoSummary
	}
	return utils.SafeWriteFile(path, []byte(summary))
}
