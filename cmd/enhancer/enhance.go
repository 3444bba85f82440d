package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webnovel-tools/enhancer/internal/chunker"
	"github.com/webnovel-tools/enhancer/internal/session"
)

var (
	enhanceNovelID string
	enhanceOutput  string
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance [file]",
	Short: "Enhance a novel text file (or stdin)",
	Long: `Run one enhancement session over the given text file. With no file
argument, text is read from stdin.

The rewritten document goes to stdout unless --output names a file.
Character knowledge accumulates per novel under the enhancer home
directory, keyed by --novel-id (default: the file name).

Examples:
  enhancer enhance chapter-12.txt
  enhancer enhance chapter-12.txt --output chapter-12.enhanced.txt
  cat chapter.txt | enhancer enhance --novel-id my-novel`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}

		var text []byte
		novelID := enhanceNovelID
		if len(args) == 1 {
			text, err = os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if novelID == "" {
				novelID = novelIDFromPath(args[0])
			}
		} else {
			text, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			if novelID == "" {
				novelID = "stdin"
			}
		}

		doc, sess, err := runEnhancement(cmd, p, novelID, string(text))
		if err != nil {
			return err
		}

		snap := sess.Snapshot()
		p.logger.Info("session finished",
			"state", snap.State,
			"completed", snap.CompletedUnits,
			"failed", snap.FailedUnits,
			"total", snap.TotalUnits)

		if enhanceOutput != "" {
			if err := os.WriteFile(enhanceOutput, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", enhanceOutput, err)
			}
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), doc)
		return nil
	},
}

// runEnhancement executes one session and returns the reassembled
// document, which falls back to original text for failed units.
func runEnhancement(cmd *cobra.Command, p *pipeline, novelID, text string) (string, *session.Session, error) {
	maxSize := p.configMgr.Get().Enhancement.MaxChunkSize
	sink := session.NewTextSink(chunker.Plan(text, maxSize))

	sess, err := p.orchestrator.Run(cmd.Context(), session.Input{
		NovelID:      novelID,
		Text:         text,
		MaxChunkSize: maxSize,
		Sink:         sink,
	})
	if err != nil {
		return "", sess, err
	}
	return sink.Document(), sess, nil
}

func novelIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.ReplaceAll(base, " ", "-"))
}

func init() {
	enhanceCmd.Flags().StringVar(&enhanceNovelID, "novel-id", "", "novel identifier for persisted character state")
	enhanceCmd.Flags().StringVarP(&enhanceOutput, "output", "o", "", "write the enhanced document to a file")

	rootCmd.AddCommand(enhanceCmd)
}
