// Package store keeps the signed-in user's study data cached in memory and
// mirrors every change to the remote data service.
//
// Mutations are remote-first: the remote call completes before the cache is
// touched, so a failed call leaves the cache as it was. The mutex guards the
// cache only and is never held across a remote call.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/backend"
	"github.com/KaramelBytes/studydeck-cli/internal/logging"
	"go.uber.org/zap"
)

type Store struct {
	data     DataService
	ai       Inference
	log      *zap.Logger
	now      func() time.Time
	onChange func(Kind)

	mu         sync.Mutex
	state      State
	identity   Identity
	documents  map[string]Document
	chat       map[string][]ChatTurn
	sets       map[string]FlashcardSet
	notes      map[string]StudyNote
	stats      Stats
	checkpoint time.Time

	timer *studyTimer
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = logging.OrNop(l) }
}

// WithClock replaces time.Now for timestamps and study-time accrual.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChangeHook registers fn to run after each successful local change,
// outside the cache lock.
func WithChangeHook(fn func(Kind)) Option {
	return func(s *Store) { s.onChange = fn }
}

func New(data DataService, ai Inference, opts ...Option) *Store {
	s := &Store{
		data: data,
		ai:   ai,
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clearLocked()
	return s
}

// Open binds the store to id, loads every collection and starts the study
// clock. Load failures are logged; the session still opens.
func (s *Store) Open(ctx context.Context, id Identity) error {
	if id.ID == "" {
		return fmt.Errorf("%w: identity has no user id", ErrValidation)
	}
	s.mu.Lock()
	if s.state != StateSignedOut {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.clearLocked()
	s.identity = id
	s.state = StateLoading
	s.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		s.log.Warn("initial load incomplete", zap.String("user_id", id.ID), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading || s.identity.ID != id.ID {
		return ErrSessionClosed
	}
	s.state = StateReady
	s.checkpoint = s.now()
	s.log.Debug("session ready",
		zap.String("user_id", id.ID),
		zap.Int("documents", len(s.documents)),
		zap.Int("notes", len(s.notes)))
	return nil
}

// Close accrues the remaining study time, saves stats and clears the
// identity and every cached collection.
func (s *Store) Close(ctx context.Context) error {
	s.StopStudyTimer()

	s.mu.Lock()
	if s.state == StateSignedOut {
		s.mu.Unlock()
		return nil
	}
	id := s.identity
	ready := s.state == StateReady
	if ready && !s.checkpoint.IsZero() {
		if m := int(s.now().Sub(s.checkpoint) / time.Minute); m > 0 {
			s.stats.StudyTimeMinutes += m
		}
	}
	stats := s.stats
	s.mu.Unlock()

	var err error
	if ready {
		err = s.saveStats(ctx, id, stats)
	}

	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	return err
}

// clearLocked resets identity and caches. Caller holds mu, or owns s.
func (s *Store) clearLocked() {
	s.state = StateSignedOut
	s.identity = Identity{}
	s.documents = map[string]Document{}
	s.chat = map[string][]ChatTurn{}
	s.sets = map[string]FlashcardSet{}
	s.notes = map[string]StudyNote{}
	s.stats = Stats{}
	s.checkpoint = time.Time{}
}

// Load fetches all five collections and replaces each cached mapping
// wholesale. A failed fetch keeps that kind's previous mapping and the
// remaining kinds are still fetched. A missing stats row keeps the
// in-memory stats.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateSignedOut {
		s.mu.Unlock()
		return ErrNotReady
	}
	uid := s.identity.ID
	s.mu.Unlock()

	var errs []error
	fail := func(kind Kind, err error) {
		s.log.Error("load failed", zap.String("kind", string(kind)), zap.Error(err))
		errs = append(errs, fmt.Errorf("load %s: %w", kind, err))
	}

	if rows, err := s.data.ListDocuments(ctx, uid); err != nil {
		fail(KindDocuments, err)
	} else {
		m := make(map[string]Document, len(rows))
		for _, r := range rows {
			m[r.ID] = documentFromRow(r)
		}
		s.apply(uid, func() { s.documents = m })
	}

	if rows, err := s.data.ListChat(ctx, uid); err != nil {
		fail(KindChat, err)
	} else {
		m := make(map[string][]ChatTurn)
		for _, r := range rows {
			m[r.DocumentID] = append(m[r.DocumentID], ChatTurn{Question: r.Question, Answer: r.Answer, Timestamp: r.CreatedAt})
		}
		s.apply(uid, func() { s.chat = m })
	}

	if rows, err := s.data.ListFlashcardSets(ctx, uid); err != nil {
		fail(KindFlashcardSets, err)
	} else {
		m := make(map[string]FlashcardSet, len(rows))
		for _, r := range rows {
			m[r.ID] = setFromRow(r)
		}
		s.apply(uid, func() { s.sets = m })
	}

	if rows, err := s.data.ListNotes(ctx, uid); err != nil {
		fail(KindNotes, err)
	} else {
		m := make(map[string]StudyNote, len(rows))
		for _, r := range rows {
			m[r.ID] = noteFromRow(r)
		}
		s.apply(uid, func() { s.notes = m })
	}

	row, err := s.data.GetStats(ctx, uid)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		s.log.Debug("no stats row yet", zap.String("user_id", uid))
	case err != nil:
		fail(KindStats, err)
	default:
		st := statsFromRow(*row)
		s.apply(uid, func() { s.stats = st })
	}

	return errors.Join(errs...)
}

// apply runs fn under the lock if the session for uid is still open.
func (s *Store) apply(uid string, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSignedOut || s.identity.ID != uid {
		return false
	}
	fn()
	return true
}

// session returns the identity of the ready session.
func (s *Store) session() (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return Identity{}, ErrNotReady
	}
	return s.identity, nil
}

// commit applies a successful remote mutation to the cache and returns the
// stats as they stand afterwards.
func (s *Store) commit(id Identity, fn func()) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady || s.identity.ID != id.ID {
		s.log.Warn("dropping remote result for closed session", zap.String("user_id", id.ID))
		return Stats{}, ErrSessionClosed
	}
	fn()
	return s.stats, nil
}

func (s *Store) changed(kinds ...Kind) {
	if s.onChange == nil {
		return
	}
	for _, k := range kinds {
		s.onChange(k)
	}
}

// SaveStats writes the current counters to the remote stats row.
func (s *Store) SaveStats(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	id, stats := s.identity, s.stats
	s.mu.Unlock()
	return s.saveStats(ctx, id, stats)
}

func (s *Store) saveStats(ctx context.Context, id Identity, st Stats) error {
	row := backend.StatsRow{
		UserID:            id.ID,
		DocumentsUploaded: st.DocumentsUploaded,
		FlashcardsCreated: st.FlashcardsCreated,
		NotesCreated:      st.NotesCreated,
		QuestionsAsked:    st.QuestionsAsked,
		StudyTimeMinutes:  st.StudyTimeMinutes,
		FlashcardAccuracy: st.FlashcardAccuracy,
		UpdatedAt:         s.now(),
	}
	if err := s.data.UpsertStats(ctx, row); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// persistStats saves stats after a mutation. A failure is logged only; the
// mutation stands.
func (s *Store) persistStats(ctx context.Context, id Identity, st Stats) {
	if err := s.saveStats(ctx, id, st); err != nil {
		s.log.Warn("stats not saved", zap.String("user_id", id.ID), zap.Error(err))
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Store) Documents() map[string]Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Document, len(s.documents))
	for k, v := range s.documents {
		out[k] = v
	}
	return out
}

func (s *Store) Document(id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	return d, ok
}

// ChatHistory returns a copy of the turns for docID, oldest first.
func (s *Store) ChatHistory(docID string) []ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatTurn(nil), s.chat[docID]...)
}

func (s *Store) FlashcardSets() map[string]FlashcardSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]FlashcardSet, len(s.sets))
	for k, v := range s.sets {
		out[k] = v.clone()
	}
	return out
}

func (s *Store) FlashcardSet(id string) (FlashcardSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	return set.clone(), ok
}

func (s *Store) Notes() map[string]StudyNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]StudyNote, len(s.notes))
	for k, v := range s.notes {
		out[k] = v
	}
	return out
}

func (s *Store) Note(id string) (StudyNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n, ok
}

func (f FlashcardSet) clone() FlashcardSet {
	if f.Cards != nil {
		f.Cards = append([]Card(nil), f.Cards...)
	}
	return f
}

func documentFromRow(r backend.DocumentRow) Document {
	return Document{Name: r.Name, Content: r.Content, UploadDate: r.UploadDate, Type: r.Type}
}

func setFromRow(r backend.FlashcardSetRow) FlashcardSet {
	cards := make([]Card, 0, len(r.Cards))
	for _, c := range r.Cards {
		cards = append(cards, Card{Question: c.Question, Answer: c.Answer})
	}
	return FlashcardSet{DocName: r.DocName, Cards: cards, Created: r.CreatedAt}
}

func noteFromRow(r backend.NoteRow) StudyNote {
	return StudyNote{Title: r.Title, Content: r.Content, Created: r.CreatedAt, Modified: r.ModifiedAt, DocName: r.DocName}
}

func statsFromRow(r backend.StatsRow) Stats {
	return Stats{
		DocumentsUploaded: r.DocumentsUploaded,
		FlashcardsCreated: r.FlashcardsCreated,
		NotesCreated:      r.NotesCreated,
		QuestionsAsked:    r.QuestionsAsked,
		StudyTimeMinutes:  r.StudyTimeMinutes,
		FlashcardAccuracy: r.FlashcardAccuracy,
	}
}

func clampSub(v, n int) int {
	if v -= n; v < 0 {
		return 0
	}
	return v
}
