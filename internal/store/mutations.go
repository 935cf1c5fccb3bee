package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/studydeck-cli/internal/backend"
	"go.uber.org/zap"
)

// AddDocument extracts the text of body through the inference service,
// stores the document remotely and caches it. It returns the new id.
func (s *Store) AddDocument(ctx context.Context, filename, mimeType string, body io.Reader) (string, error) {
	if strings.TrimSpace(filename) == "" || body == nil {
		return "", ErrNoFile
	}
	id, err := s.session()
	if err != nil {
		return "", err
	}

	ex, err := s.ai.Upload(ctx, filename, body)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	name := ex.Filename
	if name == "" {
		name = filename
	}
	row, err := s.data.InsertDocument(ctx, backend.DocumentRow{
		UserID:  id.ID,
		Name:    name,
		Content: ex.Content,
		Type:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}

	st, err := s.commit(id, func() {
		s.documents[row.ID] = documentFromRow(*row)
		s.stats.DocumentsUploaded++
	})
	if err != nil {
		return "", err
	}
	s.log.Info("document added", zap.String("doc_id", row.ID), zap.Int("chars", len(row.Content)))
	s.changed(KindDocuments, KindStats)
	s.persistStats(ctx, id, st)
	return row.ID, nil
}

// DeleteDocument removes a document. Its chat history is left in place.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	if docID == "" {
		return ErrNoDocumentSelected
	}
	id, err := s.session()
	if err != nil {
		return err
	}
	if err := s.data.DeleteDocument(ctx, id.ID, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	st, err := s.commit(id, func() {
		if _, ok := s.documents[docID]; ok {
			delete(s.documents, docID)
			s.stats.DocumentsUploaded = clampSub(s.stats.DocumentsUploaded, 1)
		}
	})
	if err != nil {
		return err
	}
	s.changed(KindDocuments, KindStats)
	s.persistStats(ctx, id, st)
	return nil
}

// Ask sends question about the cached document docID to the inference
// service and appends the answered turn to the document's chat history.
func (s *Store) Ask(ctx context.Context, docID, question string) (ChatTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return ChatTurn{}, ErrEmptyQuestion
	}
	doc, id, err := s.selectDocument(docID)
	if err != nil {
		return ChatTurn{}, err
	}

	answer, err := s.ai.Ask(ctx, question, doc.Content)
	if err != nil {
		return ChatTurn{}, fmt.Errorf("ask: %w", err)
	}
	row, err := s.data.InsertChat(ctx, backend.ChatRow{
		UserID:     id.ID,
		DocumentID: docID,
		Question:   question,
		Answer:     answer,
	})
	if err != nil {
		return ChatTurn{}, fmt.Errorf("save chat: %w", err)
	}

	turn := ChatTurn{Question: row.Question, Answer: row.Answer, Timestamp: row.CreatedAt}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	st, err := s.commit(id, func() {
		s.chat[docID] = append(s.chat[docID], turn)
		s.stats.QuestionsAsked++
	})
	if err != nil {
		return ChatTurn{}, err
	}
	s.changed(KindChat, KindStats)
	s.persistStats(ctx, id, st)
	return turn, nil
}

// ClearChat deletes the chat history of docID.
func (s *Store) ClearChat(ctx context.Context, docID string) error {
	if docID == "" {
		return ErrNoDocumentSelected
	}
	id, err := s.session()
	if err != nil {
		return err
	}
	if err := s.data.DeleteChat(ctx, id.ID, docID); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}
	if _, err := s.commit(id, func() { delete(s.chat, docID) }); err != nil {
		return err
	}
	s.changed(KindChat)
	return nil
}

// GenerateFlashcards asks the inference service for count cards on docID
// and stores them as a new set. It returns the new set id.
func (s *Store) GenerateFlashcards(ctx context.Context, docID string, count int) (string, error) {
	if count <= 0 {
		return "", ErrInvalidCount
	}
	doc, id, err := s.selectDocument(docID)
	if err != nil {
		return "", err
	}

	generated, err := s.ai.Flashcards(ctx, doc.Content, count)
	if err != nil {
		return "", fmt.Errorf("generate flashcards: %w", err)
	}
	cards := make([]backend.Card, 0, len(generated))
	for _, c := range generated {
		cards = append(cards, backend.Card{Question: c.Question, Answer: c.Answer})
	}
	row, err := s.data.InsertFlashcardSet(ctx, backend.FlashcardSetRow{
		UserID:  id.ID,
		DocName: doc.Name,
		Cards:   cards,
	})
	if err != nil {
		return "", fmt.Errorf("save flashcards: %w", err)
	}

	set := setFromRow(*row)
	st, err := s.commit(id, func() {
		s.sets[row.ID] = set
		s.stats.FlashcardsCreated += len(set.Cards)
	})
	if err != nil {
		return "", err
	}
	s.log.Info("flashcards generated", zap.String("set_id", row.ID), zap.Int("cards", len(set.Cards)))
	s.changed(KindFlashcardSets, KindStats)
	s.persistStats(ctx, id, st)
	return row.ID, nil
}

// DeleteFlashcardSet removes a set and takes its cards off the counter.
func (s *Store) DeleteFlashcardSet(ctx context.Context, setID string) error {
	if setID == "" {
		return ErrNoSetSelected
	}
	id, err := s.session()
	if err != nil {
		return err
	}
	if err := s.data.DeleteFlashcardSet(ctx, id.ID, setID); err != nil {
		return fmt.Errorf("delete flashcards: %w", err)
	}
	st, err := s.commit(id, func() {
		if set, ok := s.sets[setID]; ok {
			delete(s.sets, setID)
			s.stats.FlashcardsCreated = clampSub(s.stats.FlashcardsCreated, len(set.Cards))
		}
	})
	if err != nil {
		return err
	}
	s.changed(KindFlashcardSets, KindStats)
	s.persistStats(ctx, id, st)
	return nil
}

// GenerateNotes asks the inference service for study notes on docID and
// stores them as a new note titled after the document.
func (s *Store) GenerateNotes(ctx context.Context, docID string) (string, error) {
	doc, id, err := s.selectDocument(docID)
	if err != nil {
		return "", err
	}

	content, err := s.ai.Notes(ctx, doc.Content)
	if err != nil {
		return "", fmt.Errorf("generate notes: %w", err)
	}
	now := s.now()
	row, err := s.data.InsertNote(ctx, backend.NoteRow{
		UserID:     id.ID,
		Title:      doc.Name + " - Notes",
		Content:    content,
		DocName:    doc.Name,
		CreatedAt:  now,
		ModifiedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("save notes: %w", err)
	}

	st, err := s.commit(id, func() {
		s.notes[row.ID] = noteFromRow(*row)
		s.stats.NotesCreated++
	})
	if err != nil {
		return "", err
	}
	s.changed(KindNotes, KindStats)
	s.persistStats(ctx, id, st)
	return row.ID, nil
}

// SaveNote replaces the content of a cached note and stamps it modified.
func (s *Store) SaveNote(ctx context.Context, noteID, content string) error {
	if noteID == "" {
		return ErrNoNoteSelected
	}
	id, err := s.session()
	if err != nil {
		return err
	}
	if _, ok := s.Note(noteID); !ok {
		return ErrUnknownNote
	}

	modified := s.now()
	if err := s.data.UpdateNote(ctx, id.ID, noteID, content, modified); err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	_, err = s.commit(id, func() {
		if n, ok := s.notes[noteID]; ok {
			n.Content = content
			n.Modified = modified
			s.notes[noteID] = n
		}
	})
	if err != nil {
		return err
	}
	s.changed(KindNotes)
	return nil
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(ctx context.Context, noteID string) error {
	if noteID == "" {
		return ErrNoNoteSelected
	}
	id, err := s.session()
	if err != nil {
		return err
	}
	if err := s.data.DeleteNote(ctx, id.ID, noteID); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	st, err := s.commit(id, func() {
		if _, ok := s.notes[noteID]; ok {
			delete(s.notes, noteID)
			s.stats.NotesCreated = clampSub(s.stats.NotesCreated, 1)
		}
	})
	if err != nil {
		return err
	}
	s.changed(KindNotes, KindStats)
	s.persistStats(ctx, id, st)
	return nil
}

func (s *Store) selectDocument(docID string) (Document, Identity, error) {
	if docID == "" {
		return Document{}, Identity{}, ErrNoDocumentSelected
	}
	id, err := s.session()
	if err != nil {
		return Document{}, Identity{}, err
	}
	doc, ok := s.Document(docID)
	if !ok {
		return Document{}, Identity{}, ErrUnknownDocument
	}
	return doc, id, nil
}
