package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// State represents where a module is in its lifecycle
type State string

const (
	StateClosed    State = "CLOSED"
	StateOpened    State = "OPENED"
	StatePoweredOn State = "POWERED_ON"
)

// Loader turns a module path into a live Module. The returned dispose func
// releases whatever the loader allocated (a child process, a library handle)
// and is called exactly once by Release.
type Loader interface {
	Load(ctx context.Context, path string) (Module, func(), error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string) (Module, func(), error)

func (f LoaderFunc) Load(ctx context.Context, path string) (Module, func(), error) {
	return f(ctx, path)
}

// Lifecycle drives a single module handle through Closed, Opened and
// PoweredOn. It is not safe for concurrent use; the owning runtime
// serializes access.
type Lifecycle struct {
	loader  Loader
	logger  *slog.Logger
	module  Module
	dispose func()
	state   State
	powered bool
	session string
	path    string
}

// NewLifecycle creates a closed lifecycle. loader may be nil when modules
// are only ever attached directly.
func NewLifecycle(loader Loader, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{loader: loader, logger: logger, state: StateClosed}
}

// Open loads the module at path and opens it.
func (l *Lifecycle) Open(ctx context.Context, path string) error {
	if l.state != StateClosed {
		return fmt.Errorf("module %s already open", l.path)
	}
	if _, err := os.Stat(path); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	if l.loader == nil {
		return &LoadError{Path: path, Err: errors.New("no loader configured")}
	}

	module, dispose, err := l.loader.Load(ctx, path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	if err := l.adopt(module, dispose, path); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return nil
}

// Attach adopts an already constructed module, for in-process modules.
func (l *Lifecycle) Attach(module Module) error {
	if l.state != StateClosed {
		return fmt.Errorf("module %s already open", l.path)
	}
	if module == nil {
		return &LoadError{Path: "<attached>", Err: errors.New("nil module")}
	}
	if err := l.adopt(module, nil, "<attached>"); err != nil {
		return &LoadError{Path: "<attached>", Err: err}
	}
	return nil
}

func (l *Lifecycle) adopt(module Module, dispose func(), path string) error {
	if err := module.Open(); err != nil {
		if dispose != nil {
			dispose()
		}
		return fmt.Errorf("open: %w", err)
	}

	l.module = module
	l.dispose = dispose
	l.path = path
	l.session = uuid.New().String()
	l.state = StateOpened
	l.logger.Info("Module opened", "module", path, "session", l.session)
	return nil
}

// EnsurePowered powers the module on and starts processing the first time
// it is called in an open session. Later calls do nothing. Power-on happens
// at most once per session; a failed start is retried on the next call.
func (l *Lifecycle) EnsurePowered() error {
	switch l.state {
	case StateClosed:
		return ErrNotOpen
	case StatePoweredOn:
		return nil
	}

	if !l.powered {
		if err := l.module.SetPowerState(true); err != nil {
			return fmt.Errorf("power on: %w", err)
		}
		l.powered = true
	}
	if err := l.module.StartProcessing(); err != nil {
		return fmt.Errorf("start processing: %w", err)
	}
	l.state = StatePoweredOn
	l.logger.Debug("Module powered on", "session", l.session)
	return nil
}

// Release stops, powers off, closes and disposes the module. Stop and
// power-off are skipped for steps that never happened. Every step
// runs even if an earlier one fails; the failures are joined. Releasing a
// closed lifecycle is a no-op.
func (l *Lifecycle) Release() error {
	if l.state == StateClosed {
		return nil
	}

	var errs []error
	if l.state == StatePoweredOn {
		if err := l.module.StopProcessing(); err != nil {
			errs = append(errs, fmt.Errorf("stop processing: %w", err))
		}
	}
	if l.powered {
		if err := l.module.SetPowerState(false); err != nil {
			errs = append(errs, fmt.Errorf("power off: %w", err))
		}
	}
	if err := l.module.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	if l.dispose != nil {
		l.dispose()
	}

	l.logger.Info("Module released", "module", l.path, "session", l.session)
	l.module = nil
	l.dispose = nil
	l.state = StateClosed
	l.powered = false
	l.session = ""
	l.path = ""
	return errors.Join(errs...)
}

// Module returns the open module, or ErrNotOpen.
func (l *Lifecycle) Module() (Module, error) {
	if l.state == StateClosed {
		return nil, ErrNotOpen
	}
	return l.module, nil
}

func (l *Lifecycle) State() State      { return l.state }
func (l *Lifecycle) SessionID() string { return l.session }
func (l *Lifecycle) Path() string      { return l.path }
