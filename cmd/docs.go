package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/store"
	"github.com/KaramelBytes/studydeck-cli/internal/utils"
	"github.com/spf13/cobra"
)

// serviceWindowTokens is roughly how much of a document the inference
// service reads (its first 4000 characters).
const serviceWindowTokens = 1000

var (
	docsAddLocal  bool
	docsShowLimit int
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage study documents",
}

var docsAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Upload documents and extract their text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []sessionOption
		if docsAddLocal {
			opts = append(opts, withLocalExtraction())
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			var failed int
			for _, path := range args {
				id, err := addDocument(ctx, s.store, path)
				if err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "✗ %s: %v\n", filepath.Base(path), err)
					continue
				}
				doc, _ := s.store.Document(id)
				fmt.Printf("✓ Document added: %s [%s] (~%d tokens)\n", doc.Name, id, utils.CountTokens(doc.Content))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		}, opts...)
	},
}

func addDocument(ctx context.Context, st *store.Store, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return st.AddDocument(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			docs := s.store.Documents()
			if len(docs) == 0 {
				fmt.Println("(no documents)")
				return nil
			}
			for _, id := range sortedKeys(docs, func(d store.Document) time.Time { return d.UploadDate }) {
				d := docs[id]
				fmt.Printf("- %s: %s (%s, ~%d tokens, %d questions)\n",
					id, d.Name, d.UploadDate.Format("2006-01-02"), utils.CountTokens(d.Content), len(s.store.ChatHistory(id)))
			}
			return nil
		})
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show <doc-id>",
	Short: "Print a document's extracted text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			docs := s.store.Documents()
			id, err := resolveID("document", args[0], keysOf(docs))
			if err != nil {
				return err
			}
			d := docs[id]
			fmt.Printf("%s (%s, uploaded %s)\n\n", d.Name, d.Type, d.UploadDate.Format(time.RFC822))
			text := d.Content
			if docsShowLimit > 0 {
				text = utils.TruncateToTokenLimit(text, docsShowLimit)
			}
			fmt.Println(text)
			return nil
		})
	},
}

var docsRmCmd = &cobra.Command{
	Use:   "rm <doc-id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := resolveID("document", args[0], keysOf(s.store.Documents()))
			if err != nil {
				return err
			}
			if err := s.store.DeleteDocument(ctx, id); err != nil {
				return err
			}
			fmt.Printf("✓ Document deleted: %s\n", id)
			return nil
		})
	},
}

// warnIfTruncated tells the user when the service will only read part of
// the document.
func warnIfTruncated(d store.Document) {
	if n := utils.CountTokens(d.Content); n > serviceWindowTokens {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %s is ~%d tokens; only the first ~%d are sent to the AI service\n", d.Name, n, serviceWindowTokens)
	}
}

// resolveDocument resolves a document id argument against the cache.
func resolveDocument(s *session, arg string) (string, store.Document, error) {
	docs := s.store.Documents()
	id, err := resolveID("document", arg, keysOf(docs))
	if err != nil {
		return "", store.Document{}, err
	}
	return id, docs[id], nil
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsAddCmd, docsListCmd, docsShowCmd, docsRmCmd)
	docsAddCmd.Flags().BoolVar(&docsAddLocal, "local", false, "extract text on this machine (txt, md, docx, csv) instead of the AI service")
	docsShowCmd.Flags().IntVar(&docsShowLimit, "limit", 0, "print at most this many tokens")
}
