// Package watch keeps a RuleSet in step with the rule file it was loaded
// from. Each reload builds a complete RuleSet before publishing it, so readers
// always see either the old set or the new one.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/jonbodner/replacer"
)

const defaultDebounce = 100 * time.Millisecond

type Option func(*Reloader)

func WithCompileOptions(opts replacer.CompileOptions) Option {
	return func(r *Reloader) { r.compileOpts = opts }
}

// WithDebounce sets how long the file must stay quiet before it is reloaded.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		if d > 0 {
			r.debounce = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reloader) { r.log = logger }
}

// WithOnReload registers fn to be called after every reload attempt. On
// failure rs is the set still in use.
func WithOnReload(fn func(rs *replacer.RuleSet, err error)) Option {
	return func(r *Reloader) { r.onReload = fn }
}

type Reloader struct {
	path        string
	compileOpts replacer.CompileOptions
	debounce    time.Duration
	log         zerolog.Logger
	onReload    func(*replacer.RuleSet, error)

	// reloadMu orders load-and-publish so an older file never lands last.
	reloadMu sync.Mutex
	current  atomic.Pointer[replacer.RuleSet]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	runCtx  context.Context
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	closed  bool
}

// New loads the rule file at path. It fails if the initial load fails; later
// reload failures keep the last good RuleSet.
func New(path string, opts ...Option) (*Reloader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule file %s: %w", path, err)
	}
	r := &Reloader{
		path:     filepath.Clean(abs),
		debounce: defaultDebounce,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "watch").Str("path", r.path).Logger()

	rs, err := replacer.LoadRuleSet(r.path, r.compileOpts)
	if err != nil {
		return nil, err
	}
	r.current.Store(rs)
	return r, nil
}

func (r *Reloader) RuleSet() *replacer.RuleSet {
	return r.current.Load()
}

func (r *Reloader) Apply(text string) string {
	return r.current.Load().Apply(text)
}

// Reload reads the rule file now. The new set is only published if the
// whole file loads and compiles. Reloads run one at a time, and the OnReload
// callback runs inside that section, so it must not call Reload.
func (r *Reloader) Reload() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	rs, err := replacer.LoadRuleSet(r.path, r.compileOpts)
	if err != nil {
		r.log.Warn().Err(err).Msg("reload failed, keeping previous rules")
		if r.onReload != nil {
			r.onReload(r.current.Load(), err)
		}
		return err
	}
	r.current.Store(rs)
	r.log.Info().Int("rules", rs.Len()).Msg("rules reloaded")
	if r.onReload != nil {
		r.onReload(rs, nil)
	}
	return nil
}

// Start watches the rule file's directory so that editors which replace the
// file by renaming are seen too. It returns once the watch is set up.
// Calling Start while a watch is live is a no-op; once the context of the
// previous Start is done, Start sets up a new watch under ctx.
func (r *Reloader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("reloader is closed")
	}
	if r.running {
		if r.loopAlive() {
			return nil
		}
		if err := r.stopLocked(); err != nil {
			r.log.Warn().Err(err).Msg("closing previous watcher")
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(r.path), err)
	}

	r.watcher = watcher
	r.runCtx = ctx
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.running = true
	go r.run(ctx, watcher, r.stopCh, r.doneCh)
	r.log.Debug().Dur("debounce", r.debounce).Msg("watching rule file")
	return nil
}

// Close stops watching and waits for the event loop to exit. The last
// published RuleSet stays usable.
func (r *Reloader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if !r.running {
		return nil
	}
	return r.stopLocked()
}

// loopAlive reports whether the event loop is running and will keep running.
// Callers hold mu.
func (r *Reloader) loopAlive() bool {
	select {
	case <-r.doneCh:
		return false
	default:
	}
	return r.runCtx.Err() == nil
}

// stopLocked ends the event loop and releases the watcher. Callers hold mu.
func (r *Reloader) stopLocked() error {
	r.running = false
	close(r.stopCh)
	<-r.doneCh
	err := r.watcher.Close()
	r.watcher = nil
	r.runCtx = nil
	return err
}

func (r *Reloader) run(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			r.log.Debug().Str("op", event.Op.String()).Msg("rule file changed")
			timer.Reset(r.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.Error().Err(err).Msg("watcher error")
		case <-timer.C:
			_ = r.Reload()
		}
	}
}
