package backend

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

// UserRow is a registered account.
type UserRow struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name         string    `gorm:"not null;size:100" json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (UserRow) TableName() string { return "user_profiles" }

// SessionRow backs an issued session token. Revoked sessions stay for audit.
type SessionRow struct {
	ID        string `gorm:"primaryKey;size:21"`
	UserID    string `gorm:"index;not null;size:36"`
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (SessionRow) TableName() string { return "sessions" }

type DocumentRow struct {
	ID         string    `gorm:"primaryKey;size:21" json:"id"`
	UserID     string    `gorm:"index;not null;size:36" json:"user_id"`
	Name       string    `gorm:"not null;size:255" json:"name"`
	Content    string    `gorm:"type:text" json:"content"`
	Type       string    `gorm:"size:100" json:"type"`
	UploadDate time.Time `gorm:"autoCreateTime" json:"upload_date"`
}

func (DocumentRow) TableName() string { return "documents" }

// ChatRow is one question/answer turn. The autoincrement id gives the
// append order within a document.
type ChatRow struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"index;not null;size:36" json:"user_id"`
	DocumentID string    `gorm:"index;not null;size:21" json:"document_id"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	Answer     string    `gorm:"type:text" json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ChatRow) TableName() string { return "chat_history" }

// Card is stored inline in its flashcard set.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FlashcardSetRow struct {
	ID        string    `gorm:"primaryKey;size:21" json:"id"`
	UserID    string    `gorm:"index;not null;size:36" json:"user_id"`
	DocName   string    `gorm:"size:255" json:"doc_name"`
	Cards     []Card    `gorm:"serializer:json;type:text" json:"cards"`
	CreatedAt time.Time `json:"created_at"`
}

func (FlashcardSetRow) TableName() string { return "flashcard_sets" }

type NoteRow struct {
	ID         string    `gorm:"primaryKey;size:21" json:"id"`
	UserID     string    `gorm:"index;not null;size:36" json:"user_id"`
	Title      string    `gorm:"not null;size:255" json:"title"`
	Content    string    `gorm:"type:text" json:"content"`
	DocName    string    `gorm:"size:255" json:"doc_name"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

func (NoteRow) TableName() string { return "study_notes" }

// StatsRow holds the per-user counters. One row per user.
type StatsRow struct {
	UserID            string    `gorm:"primaryKey;size:36" json:"user_id"`
	DocumentsUploaded int       `gorm:"not null" json:"documents_uploaded"`
	FlashcardsCreated int       `gorm:"not null" json:"flashcards_created"`
	NotesCreated      int       `gorm:"not null" json:"notes_created"`
	QuestionsAsked    int       `gorm:"not null" json:"questions_asked"`
	StudyTimeMinutes  int       `gorm:"not null" json:"study_time_minutes"`
	FlashcardAccuracy float64   `gorm:"not null" json:"flashcard_accuracy"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (StatsRow) TableName() string { return "user_stats" }

func allModels() []any {
	return []any{
		&UserRow{}, &SessionRow{}, &DocumentRow{}, &ChatRow{},
		&FlashcardSetRow{}, &NoteRow{}, &StatsRow{},
	}
}

func newID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}

func (r *DocumentRow) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID, err = newID()
	}
	return err
}

func (r *FlashcardSetRow) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID, err = newID()
	}
	return err
}

func (r *NoteRow) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID, err = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.ModifiedAt.IsZero() {
		r.ModifiedAt = r.CreatedAt
	}
	return err
}

func (r *SessionRow) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID, err = newID()
	}
	return err
}
