package mux

import (
	"errors"
	"fmt"
)

var (
	ErrBackendsExhausted = errors.New("no configured backend could complete the action")
	ErrNoNativeBackend   = errors.New("no native backend configured")
	ErrNoAppBackend      = errors.New("no app-store backend configured")
	ErrInterrupted       = errors.New("interrupted")
	ErrUnsupportedRepo   = errors.New("unsupported repository url")
	ErrNotAFile          = errors.New("remote path is not a file")
)

// Error is returned by dispatcher actions.
type Error struct {
	Op      string
	Package string
	Err     error
}

func (e *Error) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ManifestError reports a muxFile that failed validation. Index is -1 for
// document level problems.
type ManifestError struct {
	Path  string
	Key   string
	Index int
	Err   error
}

func (e *ManifestError) Error() string {
	switch {
	case e.Index >= 0 && e.Key != "":
		return fmt.Sprintf("%s: packages[%d]: missing or invalid %q", e.Path, e.Index, e.Key)
	case e.Index >= 0:
		return fmt.Sprintf("%s: packages[%d]: %v", e.Path, e.Index, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s: missing required key %q", e.Path, e.Key)
	default:
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
}

func (e *ManifestError) Unwrap() error { return e.Err }

// CommandError is a subprocess that could not be launched or exited non-zero.
type CommandError struct {
	Argv []string
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %s: %v", quoteArgv(e.Argv), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// exitError carries a process exit code out of the cobra tree.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
