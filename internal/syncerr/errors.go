// Package syncerr defines the error taxonomy shared by the zipsync pipeline.
//
// Run-scoped errors (configuration, feed, directory, unavailable remote) abort a
// run and reach the caller. Entity-scoped errors (mutation, unexpected
// collaborator failure) are recorded against one campaign and the run continues.
package syncerr

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a remote collaborator that cannot serve the run at all,
// e.g. rejected credentials or an account-wide outage. Wrapping it turns an
// otherwise entity-scoped failure into a run-scoped one.
var ErrUnavailable = errors.New("remote collaborator unavailable")

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

// Configf builds a ConfigurationError for key.
func Configf(key, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// FetchError reports a source feed that stayed unreachable after all retries.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DirectoryReadError reports a failed read of existing criteria for the whole
// batch of campaigns. Partial directory data is never used.
type DirectoryReadError struct {
	Targets int
	Err     error
}

func (e *DirectoryReadError) Error() string {
	return fmt.Sprintf("read existing criteria for %d campaign(s): %v", e.Targets, e.Err)
}

func (e *DirectoryReadError) Unwrap() error { return e.Err }

// MutationError reports a chunk write that failed as a whole.
type MutationError struct {
	Target string
	Chunk  int
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("campaign %s: chunk %d: %v", e.Target, e.Chunk, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// UnexpectedCollaboratorError wraps a panic or otherwise unclassified failure
// raised while processing one campaign.
type UnexpectedCollaboratorError struct {
	Target string
	Value  any
	Stack  []byte
}

func (e *UnexpectedCollaboratorError) Error() string {
	return fmt.Sprintf("campaign %s: unexpected collaborator failure: %v", e.Target, e.Value)
}

// Unwrap exposes the recovered value when it was itself an error.
func (e *UnexpectedCollaboratorError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsRunFatal reports whether err must abort the whole run.
func IsRunFatal(err error) bool {
	if err == nil {
		return false
	}
	var cfg *ConfigurationError
	var fetch *FetchError
	var dir *DirectoryReadError
	return errors.Is(err, ErrUnavailable) ||
		errors.As(err, &cfg) ||
		errors.As(err, &fetch) ||
		errors.As(err, &dir)
}
