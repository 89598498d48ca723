package template

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/clinsight/takforge/errors"
)

// Watcher reloads the repository when template files change on disk, so
// long runs pick up template fixes between definitions without a restart.
type Watcher struct {
	repo    *Repository
	watcher *fsnotify.Watcher
	logger  *zap.SugaredLogger

	mu            sync.Mutex
	debounceTimer *time.Timer
	done          chan struct{}
}

const debouncePeriod = 500 * time.Millisecond

// NewWatcher creates a watcher over the repository's template directory.
func NewWatcher(repo *Repository, logger *zap.SugaredLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fw.Add(repo.dir); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch template directory %s", repo.dir)
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Watcher{
		repo:    repo,
		watcher: fw,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for template changes.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop ends watching and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debugw("Template change detected",
				"file", event.Name,
				"op", event.Op.String(),
			)
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Template watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// scheduleReload debounces rapid file events into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debouncePeriod, func() {
		if err := w.repo.reload(); err != nil {
			w.logger.Warnw("Template reload failed", "error", err)
			return
		}
		w.logger.Infow("Templates reloaded", "dir", w.repo.dir)
	})
}
