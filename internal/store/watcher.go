package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// fileWatcher turns filesystem events on a database file and its journal
// sidecars into feed wakeups. It lets writes made through other handles,
// including other processes, reach this store's observers.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	base    string
	onWrite func()
	logger  *zap.Logger
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// newFileWatcher watches the directory holding dbPath. SQLite replaces
// journal files rather than editing them in place, so watching the file
// alone would miss commits.
func newFileWatcher(dbPath string, onWrite func(), logger *zap.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path %s: %w", dbPath, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch database directory %s: %w", dir, err)
	}

	fw := &fileWatcher{
		watcher: watcher,
		base:    filepath.Base(abs),
		onWrite: onWrite,
		logger:  logger,
		done:    make(chan struct{}),
	}

	fw.wg.Add(1)
	go fw.processEvents()

	return fw, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (fw *fileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}

func (fw *fileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.relevant(event) {
				fw.onWrite()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("database watcher error", zap.Error(err))
		}
	}
}

// relevant reports whether the event touches the database or a sidecar
// that changes on commit. Chmod and the shared-memory index are ignored.
func (fw *fileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	name := filepath.Base(event.Name)
	if name == fw.base {
		return true
	}
	suffix, ok := strings.CutPrefix(name, fw.base)
	if !ok {
		return false
	}
	return suffix == "-journal" || suffix == "-wal"
}
