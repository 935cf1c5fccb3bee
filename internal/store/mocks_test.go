package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/backend"
	"github.com/KaramelBytes/studydeck-cli/internal/inference"
)

var errRemote = errors.New("remote unavailable")

// fakeData is an in-memory DataService. Setting fail[method] makes that
// method return the error.
type fakeData struct {
	mu    sync.Mutex
	seq   int
	fail  map[string]error
	calls []string

	docs  map[string]backend.DocumentRow
	chat  []backend.ChatRow
	sets  map[string]backend.FlashcardSetRow
	notes map[string]backend.NoteRow
	stats map[string]backend.StatsRow

	// upserts records every stats write in order.
	upserts []backend.StatsRow
}

func newFakeData() *fakeData {
	return &fakeData{
		fail:  map[string]error{},
		docs:  map[string]backend.DocumentRow{},
		sets:  map[string]backend.FlashcardSetRow{},
		notes: map[string]backend.NoteRow{},
		stats: map[string]backend.StatsRow{},
	}
}

func (f *fakeData) enter(method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	return f.fail[method]
}

func (f *fakeData) setFail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

func (f *fakeData) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeData) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeData) lastUpsert() backend.StatsRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.upserts) == 0 {
		return backend.StatsRow{}
	}
	return f.upserts[len(f.upserts)-1]
}

func (f *fakeData) ListDocuments(_ context.Context, userID string) ([]backend.DocumentRow, error) {
	if err := f.enter("ListDocuments"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	var out []backend.DocumentRow
	for _, d := range f.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeData) InsertDocument(_ context.Context, row backend.DocumentRow) (*backend.DocumentRow, error) {
	if err := f.enter("InsertDocument"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	row.ID = f.nextID("doc")
	row.UploadDate = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
	f.docs[row.ID] = row
	return &row, nil
}

func (f *fakeData) DeleteDocument(_ context.Context, userID, id string) error {
	if err := f.enter("DeleteDocument"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; !ok || d.UserID != userID {
		return backend.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeData) DeleteAllDocuments(_ context.Context, userID string) error {
	if err := f.enter("DeleteAllDocuments"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	for id, d := range f.docs {
		if d.UserID == userID {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeData) ListChat(_ context.Context, userID string) ([]backend.ChatRow, error) {
	if err := f.enter("ListChat"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	var out []backend.ChatRow
	for _, c := range f.chat {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeData) InsertChat(_ context.Context, row backend.ChatRow) (*backend.ChatRow, error) {
	if err := f.enter("InsertChat"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	f.seq++
	row.ID = uint(f.seq)
	row.CreatedAt = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
	f.chat = append(f.chat, row)
	return &row, nil
}

func (f *fakeData) DeleteChat(_ context.Context, userID, documentID string) error {
	if err := f.enter("DeleteChat"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	kept := f.chat[:0]
	for _, c := range f.chat {
		if c.UserID != userID || c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	f.chat = kept
	return nil
}

func (f *fakeData) DeleteAllChat(_ context.Context, userID string) error {
	if err := f.enter("DeleteAllChat"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	kept := f.chat[:0]
	for _, c := range f.chat {
		if c.UserID != userID {
			kept = append(kept, c)
		}
	}
	f.chat = kept
	return nil
}

func (f *fakeData) ListFlashcardSets(_ context.Context, userID string) ([]backend.FlashcardSetRow, error) {
	if err := f.enter("ListFlashcardSets"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	var out []backend.FlashcardSetRow
	for _, s := range f.sets {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeData) InsertFlashcardSet(_ context.Context, row backend.FlashcardSetRow) (*backend.FlashcardSetRow, error) {
	if err := f.enter("InsertFlashcardSet"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	row.ID = f.nextID("set")
	row.CreatedAt = time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC)
	row.Cards = append([]backend.Card(nil), row.Cards...)
	f.sets[row.ID] = row
	return &row, nil
}

func (f *fakeData) DeleteFlashcardSet(_ context.Context, userID, id string) error {
	if err := f.enter("DeleteFlashcardSet"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	if s, ok := f.sets[id]; !ok || s.UserID != userID {
		return backend.ErrNotFound
	}
	delete(f.sets, id)
	return nil
}

func (f *fakeData) DeleteAllFlashcardSets(_ context.Context, userID string) error {
	if err := f.enter("DeleteAllFlashcardSets"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	for id, s := range f.sets {
		if s.UserID == userID {
			delete(f.sets, id)
		}
	}
	return nil
}

func (f *fakeData) ListNotes(_ context.Context, userID string) ([]backend.NoteRow, error) {
	if err := f.enter("ListNotes"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	var out []backend.NoteRow
	for _, n := range f.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeData) InsertNote(_ context.Context, row backend.NoteRow) (*backend.NoteRow, error) {
	if err := f.enter("InsertNote"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	row.ID = f.nextID("note")
	f.notes[row.ID] = row
	return &row, nil
}

func (f *fakeData) UpdateNote(_ context.Context, userID, id, content string, modified time.Time) error {
	if err := f.enter("UpdateNote"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok || n.UserID != userID {
		return backend.ErrNotFound
	}
	n.Content = content
	n.ModifiedAt = modified
	f.notes[id] = n
	return nil
}

func (f *fakeData) DeleteNote(_ context.Context, userID, id string) error {
	if err := f.enter("DeleteNote"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	if n, ok := f.notes[id]; !ok || n.UserID != userID {
		return backend.ErrNotFound
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeData) DeleteAllNotes(_ context.Context, userID string) error {
	if err := f.enter("DeleteAllNotes"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	for id, n := range f.notes {
		if n.UserID == userID {
			delete(f.notes, id)
		}
	}
	return nil
}

func (f *fakeData) GetStats(_ context.Context, userID string) (*backend.StatsRow, error) {
	if err := f.enter("GetStats"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	defer f.mu.Unlock()
	row, ok := f.stats[userID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &row, nil
}

func (f *fakeData) UpsertStats(_ context.Context, row backend.StatsRow) error {
	if err := f.enter("UpsertStats"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	f.stats[row.UserID] = row
	f.upserts = append(f.upserts, row)
	return nil
}

func (f *fakeData) InsertStats(_ context.Context, userID string) error {
	if err := f.enter("InsertStats"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	f.stats[userID] = backend.StatsRow{UserID: userID}
	return nil
}

func (f *fakeData) DeleteStats(_ context.Context, userID string) error {
	if err := f.enter("DeleteStats"); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	delete(f.stats, userID)
	return nil
}

// resettingData adds the transactional reset to fakeData.
type resettingData struct {
	*fakeData
	resetErr error
}

func (r *resettingData) ResetUser(ctx context.Context, userID string) error {
	if r.resetErr != nil {
		return r.resetErr
	}
	_ = r.DeleteAllChat(ctx, userID)
	_ = r.DeleteAllFlashcardSets(ctx, userID)
	_ = r.DeleteAllNotes(ctx, userID)
	_ = r.DeleteAllDocuments(ctx, userID)
	return r.InsertStats(ctx, userID)
}

// fakeAI answers every call with canned values.
type fakeAI struct {
	mu      sync.Mutex
	err     error
	content string
	answer  string
	notes   string
	cards   []inference.Card

	// When block is set, Ask signals entered and waits on block before
	// answering.
	block   chan struct{}
	entered chan struct{}
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		content: "photosynthesis converts light to chemical energy",
		answer:  "chlorophyll",
		notes:   "# Notes\n- light reactions",
		cards: []inference.Card{
			{Question: "What pigment absorbs light?", Answer: "Chlorophyll"},
			{Question: "Where does it happen?", Answer: "Chloroplasts"},
			{Question: "What gas is released?", Answer: "Oxygen"},
		},
	}
}

func (a *fakeAI) failure() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *fakeAI) Upload(_ context.Context, filename string, body io.Reader) (*inference.Extraction, error) {
	if err := a.failure(); err != nil {
		return nil, err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	return &inference.Extraction{Filename: filename, Content: a.content}, nil
}

func (a *fakeAI) Ask(ctx context.Context, question, document string) (string, error) {
	if a.block != nil {
		a.entered <- struct{}{}
		select {
		case <-a.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := a.failure(); err != nil {
		return "", err
	}
	return a.answer, nil
}

func (a *fakeAI) Flashcards(_ context.Context, document string, count int) ([]inference.Card, error) {
	if err := a.failure(); err != nil {
		return nil, err
	}
	if count < len(a.cards) {
		return append([]inference.Card(nil), a.cards[:count]...), nil
	}
	return append([]inference.Card(nil), a.cards...), nil
}

func (a *fakeAI) Notes(_ context.Context, document string) (string, error) {
	if err := a.failure(); err != nil {
		return "", err
	}
	return a.notes, nil
}
