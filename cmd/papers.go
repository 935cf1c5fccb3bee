package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/studydeck-cli/internal/analyzer"
	"github.com/spf13/cobra"
)

var (
	papersClear       bool
	papersDownloadOut string
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Analyze past question papers for exam trends",
}

var papersAnalyzeCmd = &cobra.Command{
	Use:   "analyze [file]...",
	Short: "Upload question papers and analyze them",
	Long: `Upload question papers and ask the AI service for frequently asked topics,
likely questions and a study plan. Papers accumulate across runs until --clear.
Uploaded papers are kept even when the analysis fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			path := s.cfg.PapersFile(s.store.Identity().ID)
			a, err := loadAnalyzer(s, path)
			if err != nil {
				return err
			}
			if papersClear {
				a.Clear()
				if len(args) == 0 {
					if err := a.Save(path); err != nil {
						return err
					}
					fmt.Println("✓ Papers and analysis cleared")
					return nil
				}
			}

			if len(args) > 0 {
				files := make([]analyzer.File, 0, len(args))
				for _, p := range args {
					f, err := os.Open(p)
					if err != nil {
						return err
					}
					defer f.Close()
					files = append(files, analyzer.File{Name: filepath.Base(p), Body: f})
				}
				added, err := a.AddPapers(ctx, files)
				if err != nil {
					fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
				}
				fmt.Printf("✓ Uploaded %d papers\n", len(added))
			}
			if err := a.Save(path); err != nil {
				return err
			}

			summary, err := a.Analyze(ctx)
			if errors.Is(err, analyzer.ErrNoPapers) {
				return err
			}
			if err != nil {
				return fmt.Errorf("%w (papers were kept; 'studydeck papers ask' still works on their text)", err)
			}
			if err := a.Save(path); err != nil {
				return err
			}
			fmt.Println(summary)
			return nil
		})
	},
}

var papersAskCmd = &cobra.Command{
	Use:   "ask <question>...",
	Short: "Ask about the analyzed papers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			a, err := loadAnalyzer(s, s.cfg.PapersFile(s.store.Identity().ID))
			if err != nil {
				return err
			}
			answer, err := a.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		})
	},
}

var papersDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Save the latest analysis as a text file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			a, err := loadAnalyzer(s, s.cfg.PapersFile(s.store.Identity().ID))
			if err != nil {
				return err
			}
			if err := a.WriteSummary(papersDownloadOut); err != nil {
				return err
			}
			fmt.Printf("✓ Analysis written to %s\n", papersDownloadOut)
			return nil
		})
	},
}

// loadAnalyzer restores the signed-in user's papers and analysis.
func loadAnalyzer(s *session, path string) (*analyzer.Analyzer, error) {
	a := analyzer.New(s.ai, analyzer.WithLogger(logger.Named("analyzer")))
	if err := a.Load(path); err != nil {
		return nil, err
	}
	return a, nil
}

func init() {
	rootCmd.AddCommand(papersCmd)
	papersCmd.AddCommand(papersAnalyzeCmd, papersAskCmd, papersDownloadCmd)
	papersAnalyzeCmd.Flags().BoolVar(&papersClear, "clear", false, "discard previously uploaded papers first")
	papersDownloadCmd.Flags().StringVarP(&papersDownloadOut, "output", "o", "Question_Paper_Analysis.txt", "output path")
}
