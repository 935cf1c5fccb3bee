package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag back to its default so values from one
// invocation do not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execCmd(args ...string) error {
	resetFlags(rootCmd)
	cfg = nil
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

// fakeInference serves the endpoints of the study assistant service. A
// non-empty analyzeErr makes /api/analyze-papers answer with that error.
func fakeInference(t *testing.T, analyzeErr string) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	completion := func(content string) map[string]any {
		return map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		reply(w, map[string]any{"filename": hdr.Filename, "content": "Q1. Explain photosynthesis."})
	})
	mux.HandleFunc("/api/ask", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Document string `json:"document"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Document, "Q1. Explain photosynthesis.") {
			reply(w, completion("Photosynthesis is asked in Q1."))
			return
		}
		reply(w, completion("The mitochondria produces ATP."))
	})
	mux.HandleFunc("/api/flashcards", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"cards": []any{
			map[string]any{"question": "What produces ATP?", "answer": "Mitochondria"},
			map[string]any{"question": "What is ATP?", "answer": "Energy currency"},
		}})
	})
	mux.HandleFunc("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		reply(w, completion("# Cell biology\n- mitochondria"))
	})
	mux.HandleFunc("/api/analyze-papers", func(w http.ResponseWriter, r *http.Request) {
		if analyzeErr != "" {
			reply(w, map[string]any{"error": analyzeErr})
			return
		}
		reply(w, map[string]any{"analysis": "Photosynthesis appears in every paper."})
	})
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

func setupHome(t *testing.T) string {
	t.Helper()
	return setupHomeWith(t, "")
}

func setupHomeWith(t *testing.T, analyzeErr string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("STUDYDECK_INFERENCE_URL", fakeInference(t, analyzeErr))
	return home
}

func signIn(t *testing.T, name, email string) {
	t.Helper()
	runCmd(t, "signup", "--name", name, "--email", email, "--password", "secret1")
	runCmd(t, "login", "--email", email, "--password", "secret1")
}

func papersFiles(t *testing.T, home string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(home, ".studydeck", "papers-*.json"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func writePaper(t *testing.T, home string) string {
	t.Helper()
	paper := filepath.Join(home, "paper1.txt")
	if err := os.WriteFile(paper, []byte("Q1. Explain photosynthesis."), 0o644); err != nil {
		t.Fatal(err)
	}
	return paper
}

func readExport(t *testing.T, path string) store.Snapshot {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	return snap
}

func TestCLI_StudyFlow(t *testing.T) {
	home := setupHome(t)

	docPath := filepath.Join(home, "cells.md")
	if err := os.WriteFile(docPath, []byte("# Cells\n\nThe mitochondria is the powerhouse of the cell."), 0o644); err != nil {
		t.Fatal(err)
	}

	runCmd(t, "signup", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	runCmd(t, "login", "--email", "ada@example.com", "--password", "secret1")
	if _, err := os.Stat(filepath.Join(home, ".studydeck", "session.json")); err != nil {
		t.Fatalf("session file not written: %v", err)
	}

	runCmd(t, "docs", "add", "--local", docPath)

	exportPath := filepath.Join(home, "export.json")
	runCmd(t, "export", "-o", exportPath)
	snap := readExport(t, exportPath)
	if len(snap.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(snap.Documents))
	}
	var docID string
	for id, d := range snap.Documents {
		docID = id
		if !strings.Contains(d.Content, "powerhouse") {
			t.Fatalf("document content not extracted locally: %q", d.Content)
		}
	}

	runCmd(t, "ask", docID, "What", "produces", "ATP?")
	runCmd(t, "flashcards", "generate", docID, "-n", "2")
	runCmd(t, "notes", "generate", docID)
	runCmd(t, "stats")

	runCmd(t, "export", "-o", exportPath)
	snap = readExport(t, exportPath)
	want := store.Stats{DocumentsUploaded: 1, FlashcardsCreated: 2, NotesCreated: 1, QuestionsAsked: 1}
	got := snap.Stats
	got.StudyTimeMinutes = 0
	if got != want {
		t.Fatalf("stats mismatch: got %+v want %+v", got, want)
	}
	if turns := snap.ChatHistory[docID]; len(turns) != 1 || turns[0].Answer != "The mitochondria produces ATP." {
		t.Fatalf("unexpected chat history: %+v", snap.ChatHistory)
	}
	if len(snap.FlashcardSets) != 1 || len(snap.StudyNotes) != 1 {
		t.Fatalf("expected one set and one note, got %d and %d", len(snap.FlashcardSets), len(snap.StudyNotes))
	}
	var noteID string
	for id, n := range snap.StudyNotes {
		noteID = id
		if n.Title != "cells.md - Notes" {
			t.Fatalf("unexpected note title %q", n.Title)
		}
	}

	runCmd(t, "notes", "edit", noteID, "--content", "rewritten")
	notePath := filepath.Join(home, "note.txt")
	runCmd(t, "notes", "download", noteID, "-o", notePath)
	b, err := os.ReadFile(notePath)
	if err != nil {
		t.Fatalf("read note download: %v", err)
	}
	if string(b) != "rewritten" {
		t.Fatalf("note download = %q", b)
	}

	if err := execCmd("reset"); err == nil {
		t.Fatalf("expected reset without --yes to fail")
	}
	runCmd(t, "reset", "--yes")
	runCmd(t, "export", "-o", exportPath)
	snap = readExport(t, exportPath)
	if len(snap.Documents)+len(snap.ChatHistory)+len(snap.FlashcardSets)+len(snap.StudyNotes) != 0 {
		t.Fatalf("expected empty data after reset, got %+v", snap)
	}
	if snap.Stats != (store.Stats{}) {
		t.Fatalf("expected zero stats after reset, got %+v", snap.Stats)
	}

	runCmd(t, "logout")
	if err := execCmd("stats"); err == nil {
		t.Fatalf("expected stats to fail after logout")
	}
}

func TestCLI_WrongPasswordRejected(t *testing.T) {
	setupHome(t)
	runCmd(t, "signup", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	if err := execCmd("login", "--email", "ada@example.com", "--password", "wrong-pass"); err == nil {
		t.Fatalf("expected login with a wrong password to fail")
	}
	if err := execCmd("docs", "list"); err == nil {
		t.Fatalf("expected docs list to require a session")
	}
}

func TestCLI_PapersAnalyzeAndDownload(t *testing.T) {
	home := setupHome(t)
	signIn(t, "Ada", "ada@example.com")
	paper := writePaper(t, home)

	runCmd(t, "papers", "analyze", paper)
	if got := papersFiles(t, home); len(got) != 1 {
		t.Fatalf("expected one saved papers file, got %v", got)
	}

	out := filepath.Join(home, "analysis.txt")
	runCmd(t, "papers", "download", "-o", out)
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read analysis: %v", err)
	}
	if !strings.Contains(string(b), "Photosynthesis") {
		t.Fatalf("unexpected analysis %q", b)
	}

	runCmd(t, "papers", "ask", "Which", "topic", "repeats?")

	runCmd(t, "papers", "analyze", "--clear")
	if err := execCmd("papers", "download", "-o", out); err == nil {
		t.Fatalf("expected download to fail after --clear")
	}
}

func TestCLI_PapersKeptWhenAnalysisFails(t *testing.T) {
	home := setupHomeWith(t, "model overloaded")
	signIn(t, "Ada", "ada@example.com")
	paper := writePaper(t, home)

	err := execCmd("papers", "analyze", paper)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected the analysis error, got %v", err)
	}
	if got := papersFiles(t, home); len(got) != 1 {
		t.Fatalf("uploaded papers were not saved: %v", got)
	}

	// Questions fall back to the raw paper text.
	runCmd(t, "papers", "ask", "Which", "topics?")
}

func TestCLI_PapersArePerAccount(t *testing.T) {
	home := setupHome(t)
	signIn(t, "Ada", "ada@example.com")
	runCmd(t, "papers", "analyze", writePaper(t, home))
	runCmd(t, "logout")

	signIn(t, "Grace", "grace@example.com")
	if err := execCmd("papers", "ask", "Which", "topics?"); err == nil {
		t.Fatalf("a second account must not see the first account's papers")
	}
	out := filepath.Join(home, "analysis.txt")
	if err := execCmd("papers", "download", "-o", out); err == nil {
		t.Fatalf("a second account must not see the first account's analysis")
	}
}

func TestResolveID(t *testing.T) {
	ids := []string{"abc123", "abd456", "xyz"}
	cases := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"abc123", "abc123", false},
		{"abd", "abd456", false},
		{"ab", "", true},
		{"nope", "", true},
	}
	for _, tc := range cases {
		got, err := resolveID("document", tc.arg, ids)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("resolveID(%q): expected error", tc.arg)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("resolveID(%q) = %q, %v; want %q", tc.arg, got, err, tc.want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(50, 10); got != "[#####-----]" {
		t.Fatalf("progressBar(50) = %q", got)
	}
	if got := progressBar(250, 4); got != "[####]" {
		t.Fatalf("progressBar(250) = %q", got)
	}
}
