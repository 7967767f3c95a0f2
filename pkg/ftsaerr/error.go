// Package ftsaerr defines the error taxonomy shared by every FTSA component,
// per spec.md §7 (Error Handling Design).
package ftsaerr

import "fmt"

// Kind classifies a protocol error so callers can decide whether it is fatal
// for one party, for the round, or recoverable.
type Kind int

const (
	// InvalidArgument covers bad sizes, duplicate share indices, and
	// non-invertible field/ring elements.
	InvalidArgument Kind = iota
	// AuthenticationFailure covers AEAD tag mismatches and (u,v) envelope
	// tag mismatches.
	AuthenticationFailure
	// ThresholdNotMet covers fewer than t qualifying peers at a round step.
	ThresholdNotMet
	// ProtocolMisuse covers aggregation attempted with neither full
	// attendance nor recovery shares, and similar caller misuse.
	ProtocolMisuse
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case AuthenticationFailure:
		return "AuthenticationFailure"
	case ThresholdNotMet:
		return "ThresholdNotMet"
	case ProtocolMisuse:
		return "ProtocolMisuse"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by round steps. Step identifies
// the round step that failed (e.g. "setup_keysetup", "online_construct").
// Have and Need are populated for ThresholdNotMet errors.
type Error struct {
	Kind Kind
	Step string
	Have int
	Need int
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.Kind == ThresholdNotMet {
		return fmt.Sprintf("ftsa: %s: %s (have %d, need %d)", e.Step, e.Kind, e.Have, e.Need)
	}
	if e.Msg != "" {
		return fmt.Sprintf("ftsa: %s: %s: %s", e.Step, e.Kind, e.Msg)
	}
	return fmt.Sprintf("ftsa: %s: %s", e.Step, e.Kind)
}

func (e *Error) Unwrap() error { return e.err }

// New builds an *Error with an explanatory message.
func New(kind Kind, step, msg string) *Error {
	return &Error{Kind: kind, Step: step, Msg: msg}
}

// Wrap builds an *Error around a lower-level cause.
func Wrap(kind Kind, step string, cause error) *Error {
	return &Error{Kind: kind, Step: step, Msg: cause.Error(), err: cause}
}

// NotMet builds a ThresholdNotMet error recording the observed count versus
// the required threshold.
func NotMet(step string, have, need int) *Error {
	return &Error{Kind: ThresholdNotMet, Step: step, Have: have, Need: need}
}

// AsKind reports whether err is an *Error of the given kind. Kind is not
// itself an error, so errors.Is does not apply; AsKind checks err directly
// and does not unwrap it.
func AsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
