// Package backend is the data service behind studydeck: per-user collections
// of documents, chat turns, flashcard sets, study notes and a stats row, plus
// account sessions. It runs on sqlite for a local install or on postgres for
// a shared deployment.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/logging"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when an update or delete matched no row.
var ErrNotFound = errors.New("record not found")

// DB is the gorm-backed data service.
type DB struct {
	db         *gorm.DB
	log        *zap.Logger
	secret     []byte
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for service diagnostics.
func WithLogger(l *zap.Logger) Option { return func(d *DB) { d.log = logging.OrNop(l) } }

// WithJWTSecret sets the HMAC key used to sign session tokens.
func WithJWTSecret(secret string) Option { return func(d *DB) { d.secret = []byte(secret) } }

// WithSessionTTL sets how long issued sessions stay valid.
func WithSessionTTL(ttl time.Duration) Option { return func(d *DB) { d.sessionTTL = ttl } }

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option { return func(d *DB) { d.bcryptCost = cost } }

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option { return func(d *DB) { d.now = now } }

// Open connects to the database for driver ("sqlite" or "postgres") and
// migrates the schema.
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		if dsn == "" {
			return nil, errors.New("sqlite dsn cannot be empty")
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if dsn == "" {
			return nil, errors.New("postgres dsn cannot be empty")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (use sqlite or postgres)", driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &DB{
		db:         gdb,
		log:        zap.NewNop(),
		sessionTTL: 7 * 24 * time.Hour,
		bcryptCost: defaultBcryptCost,
		now:        time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	if err := gdb.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	d.log.Debug("database ready", zap.String("driver", driver))
	return d, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func deleteResult(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Documents

func (d *DB) ListDocuments(ctx context.Context, userID string) ([]DocumentRow, error) {
	var rows []DocumentRow
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("upload_date, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return rows, nil
}

func (d *DB) InsertDocument(ctx context.Context, row DocumentRow) (*DocumentRow, error) {
	row.ID = ""
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &row, nil
}

func (d *DB) DeleteDocument(ctx context.Context, userID, id string) error {
	res := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&DocumentRow{})
	if err := deleteResult(res); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (d *DB) DeleteAllDocuments(ctx context.Context, userID string) error {
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&DocumentRow{}).Error; err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Chat history

func (d *DB) ListChat(ctx context.Context, userID string) ([]ChatRow, error) {
	var rows []ChatRow
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	return rows, nil
}

func (d *DB) InsertChat(ctx context.Context, row ChatRow) (*ChatRow, error) {
	row.ID = 0
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert chat turn: %w", err)
	}
	return &row, nil
}

// DeleteChat removes every turn of one document. Clearing an empty history
// is not an error.
func (d *DB) DeleteChat(ctx context.Context, userID, documentID string) error {
	if err := d.db.WithContext(ctx).Where("user_id = ? AND document_id = ?", userID, documentID).Delete(&ChatRow{}).Error; err != nil {
		return fmt.Errorf("delete chat history: %w", err)
	}
	return nil
}

func (d *DB) DeleteAllChat(ctx context.Context, userID string) error {
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&ChatRow{}).Error; err != nil {
		return fmt.Errorf("delete chat history: %w", err)
	}
	return nil
}

// Flashcard sets

func (d *DB) ListFlashcardSets(ctx context.Context, userID string) ([]FlashcardSetRow, error) {
	var rows []FlashcardSetRow
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list flashcard sets: %w", err)
	}
	return rows, nil
}

func (d *DB) InsertFlashcardSet(ctx context.Context, row FlashcardSetRow) (*FlashcardSetRow, error) {
	row.ID = ""
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert flashcard set: %w", err)
	}
	return &row, nil
}

func (d *DB) DeleteFlashcardSet(ctx context.Context, userID, id string) error {
	res := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&FlashcardSetRow{})
	if err := deleteResult(res); err != nil {
		return fmt.Errorf("delete flashcard set %s: %w", id, err)
	}
	return nil
}

func (d *DB) DeleteAllFlashcardSets(ctx context.Context, userID string) error {
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&FlashcardSetRow{}).Error; err != nil {
		return fmt.Errorf("delete flashcard sets: %w", err)
	}
	return nil
}

// Study notes

func (d *DB) ListNotes(ctx context.Context, userID string) ([]NoteRow, error) {
	var rows []NoteRow
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return rows, nil
}

func (d *DB) InsertNote(ctx context.Context, row NoteRow) (*NoteRow, error) {
	row.ID = ""
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return &row, nil
}

func (d *DB) UpdateNote(ctx context.Context, userID, id, content string, modified time.Time) error {
	res := d.db.WithContext(ctx).Model(&NoteRow{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"content": content, "modified_at": modified})
	if err := deleteResult(res); err != nil {
		return fmt.Errorf("update note %s: %w", id, err)
	}
	return nil
}

func (d *DB) DeleteNote(ctx context.Context, userID, id string) error {
	res := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&NoteRow{})
	if err := deleteResult(res); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	return nil
}

func (d *DB) DeleteAllNotes(ctx context.Context, userID string) error {
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&NoteRow{}).Error; err != nil {
		return fmt.Errorf("delete notes: %w", err)
	}
	return nil
}

// Stats

// GetStats returns ErrNotFound when the user has no stats row.
func (d *DB) GetStats(ctx context.Context, userID string) (*StatsRow, error) {
	var row StatsRow
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &row, nil
}

// UpsertStats writes the whole row keyed by user id. Last writer wins.
func (d *DB) UpsertStats(ctx context.Context, row StatsRow) error {
	row.UpdatedAt = d.now()
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	return nil
}

// InsertStats creates a zeroed stats row.
func (d *DB) InsertStats(ctx context.Context, userID string) error {
	if err := d.db.WithContext(ctx).Create(&StatsRow{UserID: userID, UpdatedAt: d.now()}).Error; err != nil {
		return fmt.Errorf("insert stats: %w", err)
	}
	return nil
}

func (d *DB) DeleteStats(ctx context.Context, userID string) error {
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&StatsRow{}).Error; err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	return nil
}

// ResetUser deletes every record owned by userID and recreates a zeroed stats
// row in one transaction.
func (d *DB) ResetUser(ctx context.Context, userID string) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&ChatRow{}, &FlashcardSetRow{}, &NoteRow{}, &DocumentRow{}, &StatsRow{}} {
			if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Create(&StatsRow{UserID: userID, UpdatedAt: d.now()}).Error
	})
	if err != nil {
		return fmt.Errorf("reset user data: %w", err)
	}
	d.log.Info("user data reset", zap.String("user_id", userID))
	return nil
}
