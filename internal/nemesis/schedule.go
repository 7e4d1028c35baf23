package nemesis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Phase names a single scheduled entry: at Offset after the run starts,
// either inject or heal the wrapped Nemesis.
type Phase struct {
	Offset time.Duration
	Action string // "inject" or "heal"
}

// scheduleFile is the TOML shape of a fault schedule file. Offset is read as
// a duration string ("5s", "2m30s") rather than relying on toml's own
// unmarshaling of time.Duration, which it does not support natively.
type scheduleFile struct {
	Phases []struct {
		Offset string `toml:"offset"`
		Action string `toml:"action"`
	} `toml:"phase"`
}

// FileSchedule drives a wrapped Nemesis against a TOML schedule file,
// reloading it live whenever the file changes on disk (so an operator can
// edit the fault schedule during a long-running check).
type FileSchedule struct {
	path    string
	target  Nemesis
	log     *slog.Logger
	mu      sync.Mutex
	phases  []Phase
	watcher *fsnotify.Watcher
}

var _ Nemesis = (*FileSchedule)(nil)

// NewFileSchedule loads path and starts watching it for changes. The
// returned schedule does not itself fire phases on a timer: DuePhases
// reports which phases are due for a given elapsed time, Inject/Heal
// delegate to target, and FileSchedule only keeps the phase list current.
// The generator does not call DuePhases.
func NewFileSchedule(path string, target Nemesis, log *slog.Logger) (*FileSchedule, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fs := &FileSchedule{path: path, target: target, log: log}
	if err := fs.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("nemesis: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("nemesis: watch %s: %w", path, err)
	}
	fs.watcher = watcher
	go fs.watch()
	return fs, nil
}

func (fs *FileSchedule) watch() {
	for {
		select {
		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) {
				if err := fs.reload(); err != nil {
					fs.log.Warn("nemesis: schedule reload failed", "path", fs.path, "error", err)
				} else {
					fs.log.Info("nemesis: schedule reloaded", "path", fs.path)
				}
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.log.Warn("nemesis: watcher error", "error", err)
		}
	}
}

func (fs *FileSchedule) reload() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("nemesis: read schedule: %w", err)
	}
	var sf scheduleFile
	if err := toml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("nemesis: parse schedule: %w", err)
	}
	phases := make([]Phase, len(sf.Phases))
	for i, p := range sf.Phases {
		offset, err := time.ParseDuration(p.Offset)
		if err != nil {
			return fmt.Errorf("nemesis: parse schedule: phase %d: %w", i, err)
		}
		phases[i] = Phase{Offset: offset, Action: p.Action}
	}
	fs.mu.Lock()
	fs.phases = phases
	fs.mu.Unlock()
	return nil
}

// DuePhases returns every phase whose offset is at or before elapsed, in
// schedule-file order. Phases are never marked done, so a phase returned
// once is returned again by every later call with a larger elapsed.
func (fs *FileSchedule) DuePhases(elapsed time.Duration) []Phase {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var due []Phase
	for _, p := range fs.phases {
		if p.Offset <= elapsed {
			due = append(due, p)
		}
	}
	return due
}

// Close stops watching the schedule file.
func (fs *FileSchedule) Close() error {
	if fs.watcher == nil {
		return nil
	}
	return fs.watcher.Close()
}

func (fs *FileSchedule) Inject(ctx context.Context) error { return fs.target.Inject(ctx) }
func (fs *FileSchedule) Heal(ctx context.Context) error   { return fs.target.Heal(ctx) }
