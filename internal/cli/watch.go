package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tfpilot-io/tfpilot/internal/logging"
)

const watchDebounce = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Redeploy automatically on configuration changes",
	Long: `Watches the working directory and redeploys the stack (auto-approved)
whenever a source file changes. Intended for development loops only.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	outAbs := outDir
	if !filepath.IsAbs(outAbs) {
		outAbs = filepath.Join(wd, outAbs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, wd, outAbs); err != nil {
		return err
	}

	ctx := cmd.Context()
	redeploy := func() {
		wf, machine, err := newWorkflow(confirmerFor(true, false))
		if err != nil {
			logging.Error("failed to build workflow", "error", err)
			return
		}
		watchProgress(machine)
		if err := wf.Deploy(ctx); err != nil {
			logging.Error("deploy failed, watching for changes", "error", err)
			return
		}
		fmt.Printf("Deploy complete. Watching %s for changes...\n", wd)
	}

	redeploy()

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event, outAbs) {
				continue
			}
			logging.Debug("change detected", "file", event.Name, "op", event.Op.String())
			debounce.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", "error", err)
		case <-debounce.C:
			redeploy()
		case <-ctx.Done():
			return nil
		}
	}
}

// watchTree registers dir and its subdirectories, skipping the synth
// output directory and hidden directories.
func watchTree(watcher *fsnotify.Watcher, dir, outAbs string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path == outAbs || strings.HasPrefix(filepath.Base(path), ".") && path != dir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func relevantEvent(event fsnotify.Event, outAbs string) bool {
	if strings.HasPrefix(event.Name, outAbs+string(filepath.Separator)) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}
