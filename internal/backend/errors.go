package backend

import (
	"errors"
	"fmt"
)

// ErrModelNotTrained is returned by the surrogate backend before a fitted
// model has been installed.
var ErrModelNotTrained = errors.New("surrogate model not trained")

// EvalError is a recoverable per-evaluation failure. Retryable errors are
// retried up to the configured bound; a step that still fails is penalized
// by the loop, never fatal to the run.
type EvalError struct {
	Backend   string
	Reason    string
	Timeout   bool
	Retryable bool
	Err       error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s evaluation failed: %s: %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s evaluation failed: %s", e.Backend, e.Reason)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// MalformedExportError marks a simulator export file that cannot be
// ingested. It always names the offending column; nothing is substituted
// for missing data.
type MalformedExportError struct {
	Path   string
	Column string
	Detail string
}

func (e *MalformedExportError) Error() string {
	switch {
	case e.Column != "" && e.Detail != "":
		return fmt.Sprintf("malformed export %s: column %s: %s", e.Path, e.Column, e.Detail)
	case e.Column != "":
		return fmt.Sprintf("malformed export %s: missing required column %s", e.Path, e.Column)
	default:
		return fmt.Sprintf("malformed export %s: %s", e.Path, e.Detail)
	}
}

// ConfigError marks an unusable backend configuration. Always fatal at
// startup.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid backend configuration: %s: %s", e.Field, e.Detail)
}
