// Package refresher re-reads the collections on a fixed interval so cached
// lists stay warm while quill serves. Failures are logged, never surfaced.
package refresher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults match the dashboard's polling behavior.
const (
	DefaultInterval  = 60 * time.Second
	DefaultThreshold = 3
	DefaultWindow    = 5 * time.Minute
)

// Task is one thing to refresh.
type Task struct {
	Name    string
	Refresh func(ctx context.Context) error
}

// Options configures a Refresher.
type Options struct {
	Interval  time.Duration // default: 60s
	Threshold int           // errors within Window that suppress a tick; default: 3
	Window    time.Duration // default: 5m
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Refresher runs its tasks every Interval. When Threshold errors happened
// within Window, ticks are skipped until old errors age out.
type Refresher struct {
	tasks []Task
	opts  Options

	mu       sync.Mutex
	failures []time.Time

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a refresher. Call Start to run it.
func New(opts Options, tasks ...Task) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Refresher{tasks: tasks, opts: opts, stop: make(chan struct{})}
}

// Start runs the loop in a goroutine until ctx is done or Stop is called.
func (r *Refresher) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.Tick(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight tick.
func (r *Refresher) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}

// Tick runs every task once unless suppressed. Reports whether it ran.
func (r *Refresher) Tick(ctx context.Context) bool {
	if r.Suppressed() {
		r.opts.Logger.Debug().Int("recent_errors", r.recentErrors()).Msg("background refresh suppressed")
		return false
	}
	for _, t := range r.tasks {
		if ctx.Err() != nil {
			return true
		}
		if err := t.Refresh(ctx); err != nil {
			r.recordFailure()
			r.opts.Logger.Warn().Err(err).Str("task", t.Name).Msg("background refresh failed")
		}
	}
	return true
}

// Suppressed reports whether the recent error count has reached the threshold.
func (r *Refresher) Suppressed() bool {
	return r.recentErrors() >= r.opts.Threshold
}

func (r *Refresher) recentErrors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.opts.Now().Add(-r.opts.Window)
	kept := r.failures[:0]
	for _, at := range r.failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	r.failures = kept
	return len(kept)
}

func (r *Refresher) recordFailure() {
	r.mu.Lock()
	r.failures = append(r.failures, r.opts.Now())
	r.mu.Unlock()
}
