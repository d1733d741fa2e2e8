package collector

import (
	"errors"
	"fmt"
)

// Category tells how a remote failure is expected to behave over time. The
// orchestrator retries both categories the same way and lets the circuit
// breaker stop calls to a source that keeps failing permanently.
type Category int

const (
	// CategoryTransient covers network errors, timeouts, 429 and 5xx.
	CategoryTransient Category = iota
	// CategoryPermanent covers malformed payloads, auth failures and other 4xx.
	CategoryPermanent
)

func (c Category) String() string {
	if c == CategoryPermanent {
		return "permanent"
	}
	return "transient"
}

var (
	// ErrUnknownSource is returned when a source name is not registered.
	ErrUnknownSource = errors.New("unknown source")
	// ErrDuplicateSource is returned when registering a name twice.
	ErrDuplicateSource = errors.New("source already registered")
	// ErrDuplicateDataset is returned when a combined dataset already has a name.
	ErrDuplicateDataset = errors.New("dataset already exists")
)

// RemoteError wraps a failure reported by a source.
type RemoteError struct {
	Source   string
	Category Category
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s remote error: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s remote error from %s: %v", e.Category, e.Source, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a transient failure of source.
func NewTransientError(source string, err error) error {
	return &RemoteError{Source: source, Category: CategoryTransient, Err: err}
}

// NewPermanentError wraps err as a permanent failure of source.
func NewPermanentError(source string, err error) error {
	return &RemoteError{Source: source, Category: CategoryPermanent, Err: err}
}

// CategoryOf returns the category of err. Errors that were never categorised
// count as transient.
func CategoryOf(err error) Category {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Category
	}
	return CategoryTransient
}

// IsTransient reports whether err is (or defaults to) a transient failure.
func IsTransient(err error) bool {
	return err != nil && CategoryOf(err) == CategoryTransient
}

// IsPermanent reports whether err was categorised as permanent.
func IsPermanent(err error) bool {
	return err != nil && CategoryOf(err) == CategoryPermanent
}

// describeError renders err for metric records, prefixed by its stage.
func describeError(stage string, err error) string {
	return fmt.Sprintf("%s: %v", stage, err)
}
