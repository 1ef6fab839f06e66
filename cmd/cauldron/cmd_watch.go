package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/services"
)

const watchDebounce = 300 * time.Millisecond

func newWatchCmd() *cobra.Command {
	flags := &pipelineFlags{}
	var through string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever sources or cauldron.yml change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stage := entities.Stage(through)
			switch stage {
			case entities.StageCompile, entities.StageTest, entities.StageAssemble, entities.StageRelease:
			default:
				return fmt.Errorf("--through must be compile, test, assemble or release, got %q", through)
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				return watch(ctx, a, flags, stage)
			})
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&through, "through", string(entities.StageAssemble), "last stage of each rebuild")
	return cmd
}

func watch(ctx context.Context, a *app, flags *pipelineFlags, through entities.Stage) error {
	project, err := a.loadProject(ctx)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	//nolint:errcheck // Defer close
	defer watcher.Close()

	if err := watcher.Add(project.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", project.Dir, err)
	}
	for _, group := range [][]string{project.Sources.Main, project.Sources.Resources, project.Sources.Test, project.Sources.TestResources} {
		for _, dir := range group {
			addDirsRecursive(a, watcher, project.Abs(dir))
		}
	}

	filter := newWatchFilter(project)
	rebuild := func() {
		if err := buildOnce(ctx, a, flags, through); err != nil {
			printFailure(a.out, "%v", err)
		}
		fmt.Fprintf(a.out, "%s\n", faint("watching for changes, press Ctrl+C to stop"))
	}
	rebuild()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filter.ignore(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					addDirsRecursive(a, watcher, ev.Name)
				}
			}
			a.logger.Debug("change detected", interfaces.F(interfaces.FieldPath, ev.Name), interfaces.F("op", ev.Op.String()))
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", interfaces.Err(err))
		case <-debounce:
			debounce = nil
			rebuild()
		}
	}
}

func addDirsRecursive(a *app, w *fsnotify.Watcher, root string) {
	//nolint:errcheck // missing source roots are skipped
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				a.logger.Warn("watch add failed", interfaces.F(interfaces.FieldPath, path), interfaces.Err(err))
			}
		}
		return nil
	})
}

// watchFilter drops build output, editor swap files and hidden files
type watchFilter struct {
	outputDirs []string // directories written by the build
	archiveDir string   // directory holding the archives
	archives   []string // archive file names; sidecars extend them
}

func newWatchFilter(project *entities.Project) watchFilter {
	layout := project.Layout()
	archive := project.ArchivePath()
	return watchFilter{
		outputDirs: []string{layout.BuildDir, layout.DocsDir},
		archiveDir: filepath.Dir(archive),
		archives:   []string{filepath.Base(archive), services.JavadocArchiveName(project)},
	}
}

func (f watchFilter) ignore(path string) bool {
	for _, dir := range f.outputDirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	base := filepath.Base(path)
	if filepath.Dir(path) == f.archiveDir {
		for _, name := range f.archives {
			if base == name || strings.HasPrefix(base, name+".") {
				return true
			}
		}
	}
	if base == entities.LockfileName {
		return true
	}
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp")
}
