package simstats

import (
	"errors"
	"fmt"
)

var (
	ErrSelectorNotFound   = errors.New("selector not found")
	ErrAmbiguousLoginLink = errors.New("ambiguous login link")
	ErrNoLoginLinkFound   = errors.New("no login link found")
	ErrParseFailure       = errors.New("usage text is not numeric")
	ErrStoreWrite         = errors.New("store write failure")
	ErrStoreRead          = errors.New("store read failure")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingCredentials = errors.New("missing credentials")
)

type State string

const (
	StateAtEntryPage         State = "AtEntryPage"
	StateLoginLinkLocated    State = "LoginLinkLocated"
	StateAtLoginForm         State = "AtLoginForm"
	StateIdentifierSubmitted State = "IdentifierSubmitted"
	StateSecretSubmitted     State = "SecretSubmitted"
	StateAuthenticated       State = "Authenticated"
	StateExtracting          State = "Extracting"
)

// StepError is a failure of the login driver or the extractor, State is the
// state the driver was in when the step failed.
type StepError struct {
	Provider string
	State    State
	Selector string
	Err      error
}

func (e *StepError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.State, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s): %v", e.Provider, e.State, e.Selector, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
