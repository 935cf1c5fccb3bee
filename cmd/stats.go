package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show study statistics and weekly goal progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			printStats(s.store.Stats(), s.store.Progress(s.cfg.StudyGoalHours), s.cfg.StudyGoalHours)
			return nil
		})
	},
}

func printStats(st store.Stats, p store.Progress, goal float64) {
	fmt.Printf("Documents uploaded: %d\n", st.DocumentsUploaded)
	fmt.Printf("Flashcards created: %d\n", st.FlashcardsCreated)
	fmt.Printf("Notes created:      %d\n", st.NotesCreated)
	fmt.Printf("Questions asked:    %d\n", st.QuestionsAsked)
	fmt.Printf("Study time:         %dh %dm\n", p.Hours, p.Minutes)
	fmt.Printf("Weekly goal:        %s %.0f%% of %gh\n", progressBar(p.Percent, 20), p.Percent, goal)
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Track study time until interrupted (Ctrl+C)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var st *store.Store
		hook := store.WithChangeHook(func(k store.Kind) {
			if k == store.KindStats && st != nil {
				p := st.Progress(cfg.StudyGoalHours)
				fmt.Printf("⏱  %dh %dm studied (%.0f%% of weekly goal)\n", p.Hours, p.Minutes, p.Percent)
			}
		})
		return withSession(cmd, func(_ context.Context, s *session) error {
			st = s.store
			interval := time.Duration(s.cfg.FlushIntervalSec) * time.Second
			fmt.Printf("Study timer started at %s. Press Ctrl+C to stop.\n", time.Now().Format("15:04"))
			started := time.Now()
			s.store.StartStudyTimer(ctx, interval)
			<-ctx.Done()
			s.store.StopStudyTimer()
			logger.Debug("study timer stopped", zap.Duration("elapsed", time.Since(started)))
			fmt.Printf("\n✓ Study session ended after %s\n", time.Since(started).Round(time.Second))
			return nil
		}, withStoreOptions(hook))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, studyCmd)
}
