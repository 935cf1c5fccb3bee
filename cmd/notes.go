package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/store"
	"github.com/KaramelBytes/studydeck-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	notesEditContent string
	notesEditFile    string
	notesDownloadOut string
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Generate, edit and download study notes",
}

var notesGenerateCmd = &cobra.Command{
	Use:   "generate <doc-id>",
	Short: "Generate study notes from a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, doc, err := resolveDocument(s, args[0])
			if err != nil {
				return err
			}
			warnIfTruncated(doc)
			noteID, err := s.store.GenerateNotes(ctx, id)
			if err != nil {
				return err
			}
			note, _ := s.store.Note(noteID)
			fmt.Printf("✓ Notes created: %s [%s]\n", note.Title, noteID)
			return nil
		})
	},
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List study notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			notes := s.store.Notes()
			if len(notes) == 0 {
				fmt.Println("(no notes)")
				return nil
			}
			for _, id := range sortedKeys(notes, func(n store.StudyNote) time.Time { return n.Created }) {
				n := notes[id]
				fmt.Printf("- %s: %s (modified %s) %s\n", id, n.Title, n.Modified.Format("2006-01-02 15:04"), utils.Preview(n.Content, 12))
			}
			return nil
		})
	},
}

var notesShowCmd = &cobra.Command{
	Use:   "show <note-id>",
	Short: "Print a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			_, n, err := resolveNote(s, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\n\n%s\n", n.Title, n.Content)
			return nil
		})
	},
}

var notesEditCmd = &cobra.Command{
	Use:   "edit <note-id>",
	Short: "Replace a note's content",
	Long:  "Replace a note's content with --content, the contents of --file, or standard input when --file is '-'.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := noteContentInput(cmd)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, _, err := resolveNote(s, args[0])
			if err != nil {
				return err
			}
			if err := s.store.SaveNote(ctx, id, content); err != nil {
				return err
			}
			fmt.Println("✓ Note saved")
			return nil
		})
	},
}

var notesRmCmd = &cobra.Command{
	Use:   "rm <note-id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, _, err := resolveNote(s, args[0])
			if err != nil {
				return err
			}
			if err := s.store.DeleteNote(ctx, id); err != nil {
				return err
			}
			fmt.Printf("✓ Note deleted: %s\n", id)
			return nil
		})
	},
}

var notesDownloadCmd = &cobra.Command{
	Use:   "download <note-id>",
	Short: "Save a note as a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			_, n, err := resolveNote(s, args[0])
			if err != nil {
				return err
			}
			out := notesDownloadOut
			if out == "" {
				out = safeFileName(n.Title) + ".txt"
			}
			if err := utils.SafeWriteFile(out, []byte(n.Content)); err != nil {
				return err
			}
			fmt.Printf("✓ Note written to %s\n", out)
			return nil
		})
	},
}

func resolveNote(s *session, arg string) (string, store.StudyNote, error) {
	notes := s.store.Notes()
	id, err := resolveID("note", arg, keysOf(notes))
	if err != nil {
		return "", store.StudyNote{}, err
	}
	return id, notes[id], nil
}

func noteContentInput(cmd *cobra.Command) (string, error) {
	switch {
	case cmd.Flags().Changed("content"):
		return notesEditContent, nil
	case notesEditFile == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case notesEditFile != "":
		b, err := os.ReadFile(notesEditFile)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", errors.New("provide the new content with --content or --file")
}

// safeFileName keeps a title usable as a file name.
func safeFileName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		return "note"
	}
	return filepath.Base(name)
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesGenerateCmd, notesListCmd, notesShowCmd, notesEditCmd, notesRmCmd, notesDownloadCmd)
	notesEditCmd.Flags().StringVar(&notesEditContent, "content", "", "new note content")
	notesEditCmd.Flags().StringVarP(&notesEditFile, "file", "f", "", "read new content from a file ('-' for stdin)")
	notesDownloadCmd.Flags().StringVarP(&notesDownloadOut, "output", "o", "", "output path (default '<title>.txt')")
}
