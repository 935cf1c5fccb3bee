package store

import (
	"context"
	"io"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/backend"
	"github.com/KaramelBytes/studydeck-cli/internal/inference"
)

// State is the lifecycle position of a Store.
type State int

const (
	StateSignedOut State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed-out"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Kind names one of the cached collections.
type Kind string

const (
	KindDocuments     Kind = "documents"
	KindChat          Kind = "chat_history"
	KindFlashcardSets Kind = "flashcard_sets"
	KindNotes         Kind = "study_notes"
	KindStats         Kind = "user_stats"
)

// Identity is the signed-in account the store is scoped to.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Document struct {
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	UploadDate time.Time `json:"uploadDate"`
	Type       string    `json:"type"`
}

type ChatTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FlashcardSet cards are fixed at creation; accessors hand out copies.
type FlashcardSet struct {
	DocName string    `json:"docName"`
	Cards   []Card    `json:"cards"`
	Created time.Time `json:"created"`
}

type StudyNote struct {
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	DocName  string    `json:"docName"`
}

// Stats are best-effort counters, adjusted on each mutation rather than
// recomputed from the cache. FlashcardAccuracy is carried through load and
// save but nothing writes it.
type Stats struct {
	DocumentsUploaded int     `json:"documentsUploaded"`
	FlashcardsCreated int     `json:"flashcardsCreated"`
	NotesCreated      int     `json:"notesCreated"`
	QuestionsAsked    int     `json:"questionsAsked"`
	StudyTimeMinutes  int     `json:"studyTimeMinutes"`
	FlashcardAccuracy float64 `json:"flashcardAccuracy"`
}

// DataService is the remote data service the store mirrors. Every call is
// scoped to a user id; ids of created records are assigned by the service.
type DataService interface {
	ListDocuments(ctx context.Context, userID string) ([]backend.DocumentRow, error)
	InsertDocument(ctx context.Context, row backend.DocumentRow) (*backend.DocumentRow, error)
	DeleteDocument(ctx context.Context, userID, id string) error
	DeleteAllDocuments(ctx context.Context, userID string) error

	ListChat(ctx context.Context, userID string) ([]backend.ChatRow, error)
	InsertChat(ctx context.Context, row backend.ChatRow) (*backend.ChatRow, error)
	DeleteChat(ctx context.Context, userID, documentID string) error
	DeleteAllChat(ctx context.Context, userID string) error

	ListFlashcardSets(ctx context.Context, userID string) ([]backend.FlashcardSetRow, error)
	InsertFlashcardSet(ctx context.Context, row backend.FlashcardSetRow) (*backend.FlashcardSetRow, error)
	DeleteFlashcardSet(ctx context.Context, userID, id string) error
	DeleteAllFlashcardSets(ctx context.Context, userID string) error

	ListNotes(ctx context.Context, userID string) ([]backend.NoteRow, error)
	InsertNote(ctx context.Context, row backend.NoteRow) (*backend.NoteRow, error)
	UpdateNote(ctx context.Context, userID, id, content string, modified time.Time) error
	DeleteNote(ctx context.Context, userID, id string) error
	DeleteAllNotes(ctx context.Context, userID string) error

	GetStats(ctx context.Context, userID string) (*backend.StatsRow, error)
	UpsertStats(ctx context.Context, row backend.StatsRow) error
	InsertStats(ctx context.Context, userID string) error
	DeleteStats(ctx context.Context, userID string) error
}

// Resetter is implemented by data services that can wipe a user's records
// and recreate the zeroed stats row atomically.
type Resetter interface {
	ResetUser(ctx context.Context, userID string) error
}

// Inference is the remote generation service.
type Inference interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*inference.Extraction, error)
	Ask(ctx context.Context, question, document string) (string, error)
	Flashcards(ctx context.Context, document string, count int) ([]inference.Card, error)
	Notes(ctx context.Context, document string) (string, error)
}
