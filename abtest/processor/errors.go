package processor

import (
	"errors"
	"fmt"
)

// Load failures.
var (
	ErrSourceMissing       = errors.New("processor source missing")
	ErrSourceUnsupported   = errors.New("processor source unsupported")
	ErrSourceMalformed     = errors.New("processor source malformed")
	ErrInstantiationFailed = errors.New("processor instantiation failed")
)

// Runtime failures.
var (
	ErrPreparationFailed = errors.New("processor preparation failed")
	ErrProcessingFault   = errors.New("processor processing fault")
	ErrUnknownParameter  = errors.New("unknown parameter")
	ErrDomainViolation   = errors.New("parameter value outside [0, 1]")
	ErrClosed            = errors.New("processor closed")
)

// LoadError reports a failed load with the source that caused it.
type LoadError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s processor %q: %v", e.Kind, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError wraps err, which should match one of the load sentinels.
func NewLoadError(kind Kind, path string, err error) error {
	return &LoadError{Path: path, Kind: kind, Err: err}
}
