package addressbook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/database"
)

// CSVWatcher monitors a drop directory for contact CSV files and imports
// them as they appear. Imported files are renamed with a ".imported" suffix
// so a restart does not replay them.
type CSVWatcher struct {
	db       *database.DB
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	cancel  func()

	// Coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
}

func NewCSVWatcher(db *database.DB, watchDir string, log zerolog.Logger) *CSVWatcher {
	return &CSVWatcher{
		db:             db,
		watchDir:       watchDir,
		log:            log.With().Str("component", "csv-watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
	}
}

// Start begins watching. Pre-existing CSV files in the directory are
// imported first so a drop made while the service was down is not lost.
func (cw *CSVWatcher) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	cw.watcher = w
	if err := w.Add(cw.watchDir); err != nil {
		w.Close()
		return err
	}

	ctx, cw.cancel = context.WithCancel(ctx)

	entries, err := os.ReadDir(cw.watchDir)
	if err != nil {
		w.Close()
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			cw.importFile(ctx, filepath.Join(cw.watchDir, e.Name()))
		}
	}

	go cw.loop(ctx)
	cw.log.Info().Str("watch_dir", cw.watchDir).Msg("contacts CSV watcher started")
	return nil
}

func (cw *CSVWatcher) Stop() {
	if cw.cancel != nil {
		cw.cancel()
	}
	if cw.watcher != nil {
		cw.watcher.Close()
	}
}

func (cw *CSVWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".csv") {
				continue
			}
			cw.debounce(ctx, ev.Name)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// debounce waits for the file to stop changing before importing, since a
// drop arrives as a Create followed by a burst of Writes.
func (cw *CSVWatcher) debounce(ctx context.Context, path string) {
	cw.debounceMu.Lock()
	defer cw.debounceMu.Unlock()
	if t, ok := cw.debounceTimers[path]; ok {
		t.Stop()
	}
	cw.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		cw.debounceMu.Lock()
		delete(cw.debounceTimers, path)
		cw.debounceMu.Unlock()
		cw.importFile(ctx, path)
	})
}

func (cw *CSVWatcher) importFile(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		cw.log.Error().Err(err).Str("file", path).Msg("unable to open dropped CSV")
		return
	}
	summary, err := ImportCSV(ctx, cw.db, f)
	f.Close()
	if err != nil {
		cw.log.Error().Err(err).Str("file", path).Msg("CSV import failed")
		return
	}

	cw.log.Info().
		Str("file", filepath.Base(path)).
		Int("processed", summary.Processed).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("errors", len(summary.Errors)).
		Msg("contacts CSV imported")
	for _, e := range summary.Errors {
		cw.log.Warn().Str("file", filepath.Base(path)).Msg(e)
	}

	if err := os.Rename(path, path+".imported"); err != nil {
		cw.log.Warn().Err(err).Str("file", path).Msg("unable to rename imported CSV")
	}
}
