package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	exportOut string
	resetYes  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all study data as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			snap := s.store.Export()
			if err := snap.WriteJSON(exportOut); err != nil {
				return err
			}
			fmt.Printf("✓ Exported %d documents, %d flashcard sets and %d notes to %s\n",
				len(snap.Documents), len(snap.FlashcardSets), len(snap.StudyNotes), exportOut)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all of your study data and start over",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return errors.New("this deletes every document, chat, flashcard set, note and statistic; rerun with --yes to confirm")
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			report, err := s.store.Reset(ctx)
			for _, f := range report.Failures() {
				fmt.Printf("⚠ Warning: %s not cleared: %v\n", f.Kind, f.Err)
			}
			if err != nil {
				return err
			}
			fmt.Println("✓ All data has been reset")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, resetCmd)
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "personalstudy_data.json", "output path")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
}
