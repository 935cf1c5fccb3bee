package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/store"
	"github.com/spf13/cobra"
)

var (
	flashcardsCount       int
	flashcardsHideAnswers bool
)

var flashcardsCmd = &cobra.Command{
	Use:     "flashcards",
	Aliases: []string{"cards"},
	Short:   "Generate and review flashcards",
}

var flashcardsGenerateCmd = &cobra.Command{
	Use:   "generate <doc-id>",
	Short: "Generate a flashcard set from a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, doc, err := resolveDocument(s, args[0])
			if err != nil {
				return err
			}
			count := flashcardsCount
			if !cmd.Flags().Changed("count") {
				count = s.cfg.FlashcardCount
			}
			warnIfTruncated(doc)
			setID, err := s.store.GenerateFlashcards(ctx, id, count)
			if err != nil {
				return err
			}
			set, _ := s.store.FlashcardSet(setID)
			fmt.Printf("✓ Generated %d flashcards from %s [%s]\n", len(set.Cards), doc.Name, setID)
			return nil
		})
	},
}

var flashcardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flashcard sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			sets := s.store.FlashcardSets()
			if len(sets) == 0 {
				fmt.Println("(no flashcard sets)")
				return nil
			}
			for _, id := range sortedKeys(sets, func(f store.FlashcardSet) time.Time { return f.Created }) {
				f := sets[id]
				fmt.Printf("- %s: %s (%d cards, %s)\n", id, f.DocName, len(f.Cards), f.Created.Format("2006-01-02"))
			}
			return nil
		})
	},
}

var flashcardsShowCmd = &cobra.Command{
	Use:   "show <set-id>",
	Short: "Print the cards of a set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			sets := s.store.FlashcardSets()
			id, err := resolveID("flashcard set", args[0], keysOf(sets))
			if err != nil {
				return err
			}
			set := sets[id]
			fmt.Printf("%s (%d cards)\n\n", set.DocName, len(set.Cards))
			for i, c := range set.Cards {
				fmt.Printf("%d. Q: %s\n", i+1, c.Question)
				if !flashcardsHideAnswers {
					fmt.Printf("   A: %s\n", c.Answer)
				}
			}
			return nil
		})
	},
}

var flashcardsRmCmd = &cobra.Command{
	Use:   "rm <set-id>",
	Short: "Delete a flashcard set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, err := resolveID("flashcard set", args[0], keysOf(s.store.FlashcardSets()))
			if err != nil {
				return err
			}
			if err := s.store.DeleteFlashcardSet(ctx, id); err != nil {
				return err
			}
			fmt.Printf("✓ Flashcard set deleted: %s\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(flashcardsCmd)
	flashcardsCmd.AddCommand(flashcardsGenerateCmd, flashcardsListCmd, flashcardsShowCmd, flashcardsRmCmd)
	flashcardsGenerateCmd.Flags().IntVarP(&flashcardsCount, "count", "n", 10, "number of cards (default from config flashcard_count)")
	flashcardsShowCmd.Flags().BoolVar(&flashcardsHideAnswers, "hide-answers", false, "print questions only")
}
