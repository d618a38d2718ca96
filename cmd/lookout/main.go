// Lookout - declarative change-detection and alerting engine.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fsnotify/fsnotify"

	gctx "github.com/ajxchapman/goswatch/internal/context"

	"github.com/ajxchapman/goswatch/internal/cache"
	"github.com/ajxchapman/goswatch/internal/config"
	"github.com/ajxchapman/goswatch/internal/history"
	"github.com/ajxchapman/goswatch/internal/logging"
)

const version = "0.1.0"

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version")
		cachePath   = flag.String("cache", "lookout.cache", "Cache archive path")
		configPath  = flag.String("config", "watches/conf.yml", "Configuration file or directory")
		dataPath    = flag.String("data-path", ".", "Directory persisted watch state (file/render action output) is written under")
		historyPath = flag.String("history", "", "SQLite run-ledger path (disabled if unset)")
		findHash    = flag.String("find", "", "Report every configuration node whose hash matches this value, then exit")
		testMode    = flag.Bool("test", false, "Run against an ephemeral in-memory cache; nothing is persisted")
		verbose     = flag.Bool("verbose", false, "Enable info-level logging")
		debug       = flag.Bool("debug", false, "Enable debug-level logging and caller reporting")
		watchConfig = flag.Bool("watch-config", false, "Re-run whenever a loaded configuration file changes on disk")
	)
	flag.BoolVar(testMode, "t", false, "Shorthand for --test")
	flag.BoolVar(verbose, "v", false, "Shorthand for --verbose")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `lookout v%s - declarative change-detection and alerting engine

Usage: lookout [options] <watches...>
       lookout [options] inspect

<watches...> are configuration files or directories (directories are
globbed recursively for *.y*ml).

Options:
`, version)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  lookout watches/conf.yml                 Run once against the default cache
  lookout --test watches/                  Dry-run every *.y*ml under watches/
  lookout --find <hash> watches/             Locate a node by its content hash
  lookout --cache lookout.cache inspect    Open an interactive cache browser

Environment Variables:
  LOOKOUT_CACHE_KEY          Blob encryption key (raw 32 bytes or base64)
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("lookout v%s\n", version)
		return
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "inspect" {
		runInspect(*cachePath, args[1:])
		return
	}

	// A bare `lookout` with no positional paths falls back to --config.
	// Positional watches files/directories replace the --config path
	// rather than being added to it.
	watchPaths := args
	if len(watchPaths) == 0 {
		watchPaths = []string{*configPath}
	}

	logging.Init(*verbose, *debug)
	log := logging.Get()

	if *testMode {
		*cachePath = ""
	}

	if err := run(watchPaths, *cachePath, *dataPath, *historyPath, *findHash, *watchConfig); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(watchPaths []string, cachePath, dataPath, historyPath, findHash string, watchConfig bool) error {
	log := logging.Get()

	docs, loadErrs := config.LoadPaths(watchPaths)
	for _, err := range loadErrs {
		log.Warnf("load: %v", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no configuration documents loaded from %v", watchPaths)
	}

	if findHash != "" {
		return printFindReport(os.Stdout, config.Find(docs, findHash))
	}

	if err := runOnce(docs, cachePath, dataPath, historyPath); err != nil {
		return err
	}

	if !watchConfig {
		return nil
	}
	return watchAndRerun(watchPaths, func() {
		if err := runOnce(docs, cachePath, dataPath, historyPath); err != nil {
			log.Errorf("%v", err)
		}
	})
}

func runOnce(docs []*config.Document, cachePath, dataPath, historyPath string) error {
	log := logging.Get()

	prog, buildErrs := config.Build(docs)
	for _, err := range buildErrs {
		log.Warnf("configuration: %v", err)
	}

	defaultActions, actionErrs := config.DefaultActions(docs)
	for _, err := range actionErrs {
		log.Warnf("configuration: %v", err)
	}

	cc, err := cache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := cc.Close(); err != nil {
			log.Errorf("close cache: %v", err)
		}
	}()

	var store *history.Store
	if historyPath != "" {
		store, err = history.Open(historyPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
	}

	ctx := gctx.New()
	runErrs := config.RunOnce(ctx, cc, prog, defaultActions, dataPath)
	for _, err := range runErrs {
		log.Warnf("run: %v", err)
	}

	if store != nil {
		for _, w := range prog.Watches {
			triggered, runErr := watchOutcome(w.Hash(), runErrs)
			if err := store.RecordRun(w.Hash(), triggered, runErr); err != nil {
				log.Warnf("history: %v", err)
			}
		}
	}

	return nil
}

// watchOutcome scans the collected run errors for one attributable to
// hash. Every surviving error already carries its watch's hash in its
// message (see config.RunOnce), so a substring check is enough to
// correlate them without config.RunOnce needing a structured error type.
func watchOutcome(hash string, runErrs []error) (triggered bool, runErr error) {
	for _, err := range runErrs {
		if strings.Contains(err.Error(), hash) {
			return false, err
		}
	}
	return true, nil
}

// watchAndRerun blocks, calling rerun every time a file under one of
// watchPaths changes, until the process is interrupted.
func watchAndRerun(watchPaths []string, rerun func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch-config: %w", err)
	}
	defer w.Close()

	for _, p := range watchPaths {
		if err := addWatchRecursive(w, p); err != nil {
			return fmt.Errorf("watch-config: %w", err)
		}
	}

	log := logging.Get()
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Infof("configuration changed: %s", event.Name)
				rerun()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watch-config: %v", err)
		}
	}
}

func addWatchRecursive(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
