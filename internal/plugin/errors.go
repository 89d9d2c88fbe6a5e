package plugin

import (
	"errors"
	"fmt"
)

// ErrNotOpen is returned when an operation needs an open module.
var ErrNotOpen = errors.New("plugin: no module open")

// LoadError reports a failure to load or open a module.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load module %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
