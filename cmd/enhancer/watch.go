package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/webnovel-tools/enhancer/internal/chunker"
	"github.com/webnovel-tools/enhancer/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and enhance text files as they change",
	Long: `Watch a directory for new or modified .txt files and run an
enhancement session over each one, writing <name>.enhanced.txt beside
the source. Changes arriving while a session runs collapse into a
single follow-up run.

Example:
  enhancer watch ./chapters`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		dir := args[0]
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		p.logger.Info("watching for changes", "dir", dir)

		for {
			select {
			case <-cmd.Context().Done():
				p.logger.Info("watch stopped")
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !watchable(event.Name) {
					continue
				}
				if err := enhanceFile(cmd, p, event.Name); err != nil {
					p.logger.Error("enhancement failed", "file", event.Name, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				p.logger.Error("watcher error", "error", err)
			}
		}
	},
}

// watchable skips non-text files and our own output.
func watchable(path string) bool {
	if filepath.Ext(path) != ".txt" {
		return false
	}
	return !strings.HasSuffix(path, ".enhanced.txt")
}

func enhanceFile(cmd *cobra.Command, p *pipeline, path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	maxSize := p.configMgr.Get().Enhancement.MaxChunkSize
	sink := session.NewTextSink(chunker.Plan(string(text), maxSize))
	out := strings.TrimSuffix(path, ".txt") + ".enhanced.txt"

	sess, err := p.orchestrator.Run(cmd.Context(), session.Input{
		NovelID:      novelIDFromPath(path),
		Text:         string(text),
		MaxChunkSize: maxSize,
		Sink:         sink,
		// Also runs when this change collapsed into an active session
		// and was processed as its follow-up.
		OnFinish: func(s *session.Session) {
			snap := s.Snapshot()
			if snap.State == session.StateFailed {
				return
			}
			if err := os.WriteFile(out, []byte(sink.Document()), 0o644); err != nil {
				p.logger.Error("failed to write enhanced file", "output", out, "error", err)
				return
			}
			p.logger.Info("enhanced file written",
				"source", path, "output", out,
				"completed", snap.CompletedUnits, "failed", snap.FailedUnits)
		},
	})
	if err != nil {
		return err
	}
	if sess.Snapshot().Pending {
		p.logger.Info("change queued behind the active session", "file", path)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
