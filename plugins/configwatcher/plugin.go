// Package configwatcher reloads runtime tuning when the config file
// changes. It watches the file's directory, debounces bursts of writes,
// reparses the TOML and pushes the LOG budget, trigger policy and current
// reference into the running runtime.
package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/flightrec/pkg/flightrec"
	"github.com/bft-labs/flightrec/pkg/log"
)

// Plugin implements config watching.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration

	ctl      flightrec.Controller
	logger   log.Logger
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer

	reloads  atomic.Uint64
	failures atomic.Uint64
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path of the TOML file to watch.
	Path string

	// DebounceDelay is how long to wait after the last change before
	// reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config watching path.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Tuning is the hot-reloadable subset of the config file. Keys that are
// absent leave the runtime as it is.
type Tuning struct {
	BudgetStep   *uint32  `toml:"budget_step"`
	BudgetMax    *uint32  `toml:"budget_max"`
	TriggerAfter *uint32  `toml:"trigger_after"`
	TriggerLevel *float64 `toml:"trigger_level"`
	Reference    *float32 `toml:"reference"`
}

// ParseTuning decodes the tuning keys of a config file. Other keys are
// ignored.
func ParseTuning(b []byte) (Tuning, error) {
	var t Tuning
	if err := toml.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("parse tuning: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("parse tuning: %w", err)
	}
	return t, nil
}

// Validate rejects values a running scheduler cannot take. A zero step
// would never refill the LOG budget.
func (t Tuning) Validate() error {
	if t.BudgetStep != nil && *t.BudgetStep == 0 {
		return fmt.Errorf("budget_step must be positive: %w", flightrec.ErrInvalidConfig)
	}
	return nil
}

// Apply pushes the present keys into ctl. Nothing is applied if the
// tuning is invalid.
func (t Tuning) Apply(ctl flightrec.Controller) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cur := ctl.Snapshot()
	if t.BudgetStep != nil || t.BudgetMax != nil {
		step, max := cur.BudgetStep, cur.BudgetMax
		if t.BudgetStep != nil {
			step = *t.BudgetStep
		}
		if t.BudgetMax != nil {
			max = *t.BudgetMax
		}
		if step != cur.BudgetStep || max != cur.BudgetMax {
			ctl.Tune(step, max)
		}
	}
	if t.TriggerAfter != nil || t.TriggerLevel != nil {
		after, level := cur.TriggerAfter, cur.TriggerLevel
		if t.TriggerAfter != nil {
			after = *t.TriggerAfter
		}
		if t.TriggerLevel != nil {
			level = *t.TriggerLevel
		}
		if after != cur.TriggerAfter || level != cur.TriggerLevel {
			ctl.SetTriggerPolicy(after, level)
		}
	}
	if t.Reference != nil && *t.Reference != cur.Reference {
		ctl.SetReference(*t.Reference)
	}
	return nil
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
func (p *Plugin) Initialize(ctx context.Context, cfg flightrec.PluginConfig) error {
	p.mu.Lock()
	p.ctl = cfg.Controller
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	p.mu.Unlock()

	if p.path == "" || p.ctl == nil {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	p.logger.Info("config watcher started", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// Reloads returns how many times tuning was applied.
func (p *Plugin) Reloads() uint64 { return p.reloads.Load() }

// Failures returns how many reloads failed to read or parse the file.
func (p *Plugin) Failures() uint64 { return p.failures.Load() }

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

func (p *Plugin) reload() {
	b, err := os.ReadFile(p.path)
	if err != nil {
		p.failures.Add(1)
		p.logger.Warn("config reload failed", log.String("path", p.path), log.Err(err))
		return
	}
	t, err := ParseTuning(b)
	if err != nil {
		p.failures.Add(1)
		p.logger.Warn("config reload failed", log.String("path", p.path), log.Err(err))
		return
	}
	if err := t.Apply(p.ctl); err != nil {
		p.failures.Add(1)
		p.logger.Warn("config reload failed", log.String("path", p.path), log.Err(err))
		return
	}
	p.reloads.Add(1)
	p.logger.Info("config reloaded", log.String("path", p.path))
}

// Ensure Plugin implements flightrec.Plugin.
var _ flightrec.Plugin = (*Plugin)(nil)
