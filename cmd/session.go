package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/backend"
	cfgpkg "github.com/KaramelBytes/studydeck-cli/internal/config"
	"github.com/KaramelBytes/studydeck-cli/internal/inference"
	"github.com/KaramelBytes/studydeck-cli/internal/parser"
	"github.com/KaramelBytes/studydeck-cli/internal/store"
	"github.com/KaramelBytes/studydeck-cli/internal/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNotSignedIn = errors.New("not signed in: run 'studydeck login' first")

// sessionRecord is the signed-in session kept in the data directory.
type sessionRecord struct {
	Token   string    `json:"token"`
	Email   string    `json:"email"`
	SavedAt time.Time `json:"saved_at"`
}

func readSessionRecord(c *cfgpkg.Global) (*sessionRecord, error) {
	var rec sessionRecord
	found, err := utils.ReadJSON(c.SessionFile(), &rec)
	if err != nil {
		return nil, err
	}
	if !found || rec.Token == "" {
		return nil, errNotSignedIn
	}
	return &rec, nil
}

func writeSessionRecord(c *cfgpkg.Global, rec sessionRecord) error {
	return utils.WriteJSON(c.SessionFile(), rec)
}

func clearSessionRecord(c *cfgpkg.Global) error {
	if err := os.Remove(c.SessionFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// ensureJWTSecret generates and saves a signing secret on first use.
func ensureJWTSecret(c *cfgpkg.Global) (string, error) {
	if c.JWTSecret != "" {
		return c.JWTSecret, nil
	}
	secret, err := gonanoid.New(48)
	if err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	c.JWTSecret = secret
	if err := cfgpkg.Save(c, cfgFile); err != nil {
		return "", fmt.Errorf("save jwt secret: %w", err)
	}
	return secret, nil
}

func openBackend(c *cfgpkg.Global) (*backend.DB, error) {
	secret, err := ensureJWTSecret(c)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(c.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return backend.Open(c.DatabaseDriver, c.DatabaseDSN,
		backend.WithLogger(logger.Named("backend")),
		backend.WithJWTSecret(secret),
		backend.WithSessionTTL(time.Duration(c.SessionTTLHours)*time.Hour),
	)
}

func newInferenceClient(c *cfgpkg.Global) *inference.Client {
	return inference.NewClient(
		c.InferenceURL,
		c.APIKey,
		time.Duration(c.HTTPTimeoutSec)*time.Second,
		c.RetryMaxAttempts,
		time.Duration(c.RetryBaseDelayMs)*time.Millisecond,
		time.Duration(c.RetryMaxDelayMs)*time.Millisecond,
	)
}

// localExtractor reads uploaded files on this machine instead of sending
// them to the inference service.
type localExtractor struct {
	store.Inference
}

func (localExtractor) Upload(_ context.Context, filename string, body io.Reader) (*inference.Extraction, error) {
	text, err := parser.ParseReader(filename, body)
	if err != nil {
		return nil, err
	}
	return &inference.Extraction{Filename: filename, Content: text}, nil
}

// session is an open store bound to the signed-in account.
type session struct {
	cfg   *cfgpkg.Global
	db    *backend.DB
	ai    *inference.Client
	store *store.Store
}

type sessionSetup struct {
	ai        store.Inference
	storeOpts []store.Option
}

type sessionOption func(*sessionSetup)

func withLocalExtraction() sessionOption {
	return func(s *sessionSetup) { s.ai = localExtractor{Inference: s.ai} }
}

func withStoreOptions(opts ...store.Option) sessionOption {
	return func(s *sessionSetup) { s.storeOpts = append(s.storeOpts, opts...) }
}

// openSession restores the saved session and opens the store for it.
func openSession(ctx context.Context, opts ...sessionOption) (*session, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	rec, err := readSessionRecord(c)
	if err != nil {
		return nil, err
	}
	db, err := openBackend(c)
	if err != nil {
		return nil, err
	}
	sess, err := db.GetSession(ctx, rec.Token)
	if err != nil {
		_ = db.Close()
		if errors.Is(err, backend.ErrInvalidSession) {
			_ = clearSessionRecord(c)
			return nil, fmt.Errorf("%w (session expired)", errNotSignedIn)
		}
		return nil, err
	}

	client := newInferenceClient(c)
	setup := &sessionSetup{ai: client}
	for _, o := range opts {
		o(setup)
	}
	storeOpts := append([]store.Option{store.WithLogger(logger.Named("store"))}, setup.storeOpts...)
	st := store.New(db, setup.ai, storeOpts...)
	id := store.Identity{ID: sess.User.ID, Email: sess.User.Email, Name: sess.User.Name}
	if err := st.Open(ctx, id); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &session{cfg: c, db: db, ai: client, store: st}, nil
}

// close flushes study time and stats, then releases the database.
func (s *session) close(ctx context.Context) {
	if err := s.store.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: stats not saved: %v\n", err)
	}
	if err := s.db.Close(); err != nil {
		logger.Warn("closing database", zap.Error(err))
	}
}

// withSession runs fn against an open session and always closes it.
func withSession(cmd *cobra.Command, fn func(context.Context, *session) error, opts ...sessionOption) error {
	ctx := cmdContext(cmd)
	s, err := openSession(ctx, opts...)
	if err != nil {
		return err
	}
	defer s.close(ctx)
	return fn(ctx, s)
}

// resolveID matches arg against ids exactly or by unique prefix.
func resolveID(kind, arg string, ids []string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("%s id is required", kind)
	}
	var matches []string
	for _, id := range ids {
		if id == arg {
			return id, nil
		}
		if strings.HasPrefix(id, arg) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s not found: %s", kind, arg)
	case 1:
		return matches[0], nil
	}
	sort.Strings(matches)
	return "", fmt.Errorf("%s id %q is ambiguous: %s", kind, arg, strings.Join(matches, ", "))
}

// sortedKeys orders map keys by the time returned for each value, oldest
// first, breaking ties by id.
func sortedKeys[V any](m map[string]V, at func(V) time.Time) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, tj := at(m[keys[i]]), at(m[keys[j]])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return keys[i] < keys[j]
	})
	return keys
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
