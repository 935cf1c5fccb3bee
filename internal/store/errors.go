package store

import (
	"errors"
	"fmt"
)

// ErrValidation marks errors caught before any remote call.
var ErrValidation = errors.New("validation failed")

var (
	ErrNotReady           = fmt.Errorf("%w: not signed in", ErrValidation)
	ErrAlreadyOpen        = fmt.Errorf("%w: a session is already open", ErrValidation)
	ErrNoFile             = fmt.Errorf("%w: no file selected", ErrValidation)
	ErrNoDocumentSelected = fmt.Errorf("%w: please select a document first", ErrValidation)
	ErrUnknownDocument    = fmt.Errorf("%w: document not found", ErrValidation)
	ErrEmptyQuestion      = fmt.Errorf("%w: please enter a question", ErrValidation)
	ErrInvalidCount       = fmt.Errorf("%w: card count must be positive", ErrValidation)
	ErrNoSetSelected      = fmt.Errorf("%w: no flashcard set selected", ErrValidation)
	ErrNoNoteSelected     = fmt.Errorf("%w: no note selected", ErrValidation)
	ErrUnknownNote        = fmt.Errorf("%w: note not found", ErrValidation)
)

// ErrSessionClosed is returned when the session ended while a remote call
// was in flight; the remote result is not applied to the cache.
var ErrSessionClosed = errors.New("session closed during operation")
