package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSearchUnavailable signals that no results could be produced at all.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrNoSourcesEnabled signals that the fan-out has nothing to call.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrRateLimited signals a rejected call due to an exhausted token budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrCircuitOpen signals a rejected call while a source circuit is open.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrSourceTimeout signals a source call that exceeded its deadline.
	ErrSourceTimeout = errors.New("source timeout")
	// ErrUpstream signals a network or non-2xx failure from a source.
	ErrUpstream = errors.New("upstream error")
	// ErrMalformedAIResponse signals an AI parser payload that failed validation.
	ErrMalformedAIResponse = errors.New("malformed ai response")
	// ErrAIParserTimeout signals an AI parser call that exceeded its deadline.
	ErrAIParserTimeout = errors.New("ai parser timeout")
	// ErrCacheUnavailable signals an unreachable cache backend.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)

// SourceErrorKind classifies per-source fan-out failures.
type SourceErrorKind string

// Source error kinds reported alongside partial results.
const (
	SourceRateLimited SourceErrorKind = "rate_limited"
	SourceCircuitOpen SourceErrorKind = "circuit_open"
	SourceTimeout     SourceErrorKind = "timeout"
	SourceUpstream    SourceErrorKind = "upstream_error"
)

// SourceError records a single source's failure during fan-out.
// It never fails the overall search; callers surface it via the partial flag.
type SourceError struct {
	Source string
	Kind   SourceErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError creates a SourceError.
func NewSourceError(source string, kind SourceErrorKind, err error) *SourceError {
	return &SourceError{Source: source, Kind: kind, Err: err}
}

// KindFromError maps sentinel errors to a SourceErrorKind.
func KindFromError(err error) SourceErrorKind {
	switch {
	case errors.Is(err, ErrRateLimited):
		return SourceRateLimited
	case errors.Is(err, ErrCircuitOpen):
		return SourceCircuitOpen
	case errors.Is(err, ErrSourceTimeout):
		return SourceTimeout
	default:
		return SourceUpstream
	}
}
