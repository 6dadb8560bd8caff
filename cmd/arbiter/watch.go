package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Re-evaluate a decision document whenever it changes",
	Long: `Watches a document and reruns the pipeline on every write. Rapid saves
are debounced. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

// watchDebounce suppresses duplicate events from editors that write a file
// several times per save.
const watchDebounce = 500 * time.Millisecond

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: many editors replace the file on
	// save, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Initial run so the watcher starts from a known state.
	if outcome, err := evaluateFile(cmd.Context(), path, nil); err == nil {
		printOutcome(path, outcome)
	} else {
		logger.Warn("initial evaluation failed", zap.Error(err))
	}

	target := filepath.Clean(path)
	lastRun := time.Time{}

	logger.Info("watching document", zap.String("file", target))
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if time.Since(lastRun) < watchDebounce {
				continue
			}
			lastRun = time.Now()

			outcome, err := evaluateFile(cmd.Context(), path, nil)
			if err != nil {
				logger.Warn("document failed validation", zap.Error(err))
			}
			if outcome != nil {
				printOutcome(path, outcome)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", zap.Error(err))
		case <-sigCh:
			logger.Info("watch stopped")
			return nil
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
	}
}
