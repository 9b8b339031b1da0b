package relay

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeOp classifies a file system change.
type ChangeOp int

const (
	OpWrite ChangeOp = iota
	OpCreate
	OpRemove
	OpRename
)

func (op ChangeOp) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Structural reports whether the change alters the set of files.
func (op ChangeOp) Structural() bool {
	return op != OpWrite
}

// FileChange is one debounced change to a tracked file.
type FileChange struct {
	Path string
	Op   ChangeOp
}

// Filter decides what the watcher tracks. *crawl.Crawler satisfies it.
type Filter interface {
	Accepts(path string) bool
	SkipDir(name string) bool
}

// ChangeHandler receives each debounced batch.
type ChangeHandler func(changes []FileChange)

// Watcher watches a tree recursively and delivers debounced batches of
// changes to tracked files.
type Watcher struct {
	root     string
	filter   Filter
	handler  ChangeHandler
	debounce time.Duration
	logger   *slog.Logger

	fsw      *fsnotify.Watcher
	changes  chan FileChange
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a Watcher for root. A debounce of zero uses 100ms.
func NewWatcher(root string, filter Filter, handler ChangeHandler, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		filter:   filter,
		handler:  handler,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		changes:  make(chan FileChange, 1024),
		done:     make(chan struct{}),
	}, nil
}

// Start adds every non-excluded directory under the root and begins
// delivering changes. It returns once the watches are in place.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching and waits for the loops to exit. Pending changes are
// flushed to the handler first.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if w.filter.SkipDir(filepath.Base(event.Name)) {
					continue
				}
				w.addRecursive(event.Name)
				// Files may have landed before the watch was added.
				w.emit(FileChange{Path: event.Name, Op: OpCreate})
				continue
			}
			if !w.filter.Accepts(event.Name) {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.emit(FileChange{Path: event.Name, Op: convertOp(event.Op)})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) emit(c FileChange) {
	select {
	case w.changes <- c:
	default:
		w.logger.Warn("change buffer full, dropping event", "path", c.Path)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func convertOp(op fsnotify.Op) ChangeOp {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var batch []FileChange
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(dedupeChanges(batch))
		}
		batch = nil
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupeChanges keeps one change per path, in first-seen order. A
// structural op wins over a write.
func dedupeChanges(changes []FileChange) []FileChange {
	seen := make(map[string]int, len(changes))
	out := make([]FileChange, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			if c.Op.Structural() {
				out[i].Op = c.Op
			}
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
