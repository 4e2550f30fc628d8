package payload

import "github.com/pkg/errors"

// PermanentError wraps a failure every correct replica would agree on:
// the payload (or the block that carries it) must be rejected outright.
// The caller is never expected to retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// TransientError wraps a locally-recoverable failure: the caller should
// retry, typically on the next scheduling tick.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func permanent(err error) error {
	return &PermanentError{Err: err}
}

func transient(err error) error {
	return &TransientError{Err: err}
}

// ErrRegistryUnavailable is returned, wrapped in TransientError, when the
// registry has no subnet record for the requested version.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// PayloadTooBigError reports that a candidate payload exceeds the byte
// budget derived from the registry.
type PayloadTooBigError struct {
	Expected uint64
	Received uint64
}

func (e *PayloadTooBigError) Error() string {
	return errors.Errorf("payload too big: expected at most %d bytes, received %d", e.Expected, e.Received).Error()
}
