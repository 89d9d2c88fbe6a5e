package preset

import (
	"errors"
	"fmt"
)

// ErrBankUnsupported is returned when saving a bank from a module without
// chunk support.
var ErrBankUnsupported = errors.New("preset: module cannot save banks without chunk support")

// FormatError reports a malformed document.
type FormatError struct {
	Magic  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("invalid preset (%q): %s", e.Magic, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// MismatchError reports a document saved for a different module.
type MismatchError struct {
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("preset belongs to module %s, loaded module is %s", e.Got, e.Want)
}
