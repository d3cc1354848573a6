package rendercache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrStoreUnavailable matches every error caused by the provider or tag store backend.
	// The store never retries; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("rendercache: store unavailable")
	// ErrInvalidMetadata matches every *ValidationError; ErrInvalidKey also matches
	// those raised for an explicit node key.
	ErrInvalidMetadata = errors.New("rendercache: invalid metadata")
	ErrInvalidKey      = errors.New("rendercache: empty cache key")
)

type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("rendercache: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("rendercache: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidMetadata || (e.Field == "key" && target == ErrInvalidKey)
}

// StoreError wraps a backend failure for a single operation.
type StoreError struct {
	Op  string // "get", "set", "delete", "snapshot"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("rendercache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("rendercache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// InvalidateError reports tags whose counter could not be bumped.
// Tags missing from Failed were invalidated.
type InvalidateError struct {
	Failed map[string]error
}

func (e *InvalidateError) Error() string {
	tags := make([]string, 0, len(e.Failed))
	for t := range e.Failed {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	var b strings.Builder
	b.WriteString("rendercache: invalidate tags failed:")
	for _, t := range tags {
		fmt.Fprintf(&b, " %s=%v;", t, e.Failed[t])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed)+1)
	errs = append(errs, ErrStoreUnavailable)
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}
