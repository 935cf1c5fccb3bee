package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <doc-id> <question>...",
	Short: "Ask a question about a document",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, doc, err := resolveDocument(s, args[0])
			if err != nil {
				return err
			}
			warnIfTruncated(doc)
			turn, err := s.store.Ask(ctx, id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Println(turn.Answer)
			return nil
		})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "View or clear a document's chat history",
}

var chatShowCmd = &cobra.Command{
	Use:   "show <doc-id>",
	Short: "Print the questions and answers for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id, doc, err := resolveDocument(s, args[0])
			if err != nil {
				return err
			}
			turns := s.store.ChatHistory(id)
			if len(turns) == 0 {
				fmt.Printf("(no questions asked about %s)\n", doc.Name)
				return nil
			}
			for _, t := range turns {
				fmt.Printf("[%s] You: %s\n", t.Timestamp.Format("2006-01-02 15:04"), t.Question)
				fmt.Printf("AI: %s\n\n", t.Answer)
			}
			return nil
		})
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear <doc-id>",
	Short: "Delete a document's chat history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			// chat can outlive its document, so accept any id with history
			id := args[0]
			if resolved, _, err := resolveDocument(s, args[0]); err == nil {
				id = resolved
			}
			if err := s.store.ClearChat(ctx, id); err != nil {
				return err
			}
			fmt.Println("✓ Chat history cleared")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd, chatCmd)
	chatCmd.AddCommand(chatShowCmd, chatClearCmd)
}
