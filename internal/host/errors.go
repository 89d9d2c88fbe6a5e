package host

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by operations that need Init to have run.
var ErrNotInitialized = errors.New("host: runtime not initialized")

// ProcessingError is a failure raised by the module inside ProcessReplacing.
// The pipeline suppresses it and carries on with the next block.
type ProcessingError struct {
	Err       error
	Recovered any
}

func (e *ProcessingError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("module panicked during processing: %v", e.Recovered)
	}
	return fmt.Sprintf("module failed during processing: %v", e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
