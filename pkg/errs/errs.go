package errs

import (
	"errors"
	"fmt"
)

// ErrAuthentication is returned when a login attempt does not match the credential table.
var ErrAuthentication = errors.New("invalid credentials")

// ConfigurationError reports a missing required setting. It is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration: %s not found", e.Key)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

// Kind classifies a failed call to a generation backend.
type Kind int

const (
	MalformedResponse Kind = iota + 1
	UpstreamRejected
	Unconfigured
)

func (k Kind) String() string {
	switch k {
	case MalformedResponse:
		return "malformed_response"
	case UpstreamRejected:
		return "upstream_rejected"
	case Unconfigured:
		return "unconfigured"
	default:
		return "unknown"
	}
}

// GenerationError is returned by the narrative and illustration adapters.
// Raw keeps the untouched backend payload for diagnostic display.
type GenerationError struct {
	Kind   Kind
	Status int
	Raw    string
	Err    error
}

func (e *GenerationError) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &GenerationError{Kind: Unconfigured}).
func (e *GenerationError) Is(target error) bool {
	t, ok := target.(*GenerationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Malformed(raw string, err error) *GenerationError {
	return &GenerationError{Kind: MalformedResponse, Raw: raw, Err: err}
}

func Rejected(status int, raw string, err error) *GenerationError {
	return &GenerationError{Kind: UpstreamRejected, Status: status, Raw: raw, Err: err}
}

func NotConfigured(what string) *GenerationError {
	return &GenerationError{Kind: Unconfigured, Err: fmt.Errorf("%s not configured", what)}
}

// AsGeneration unwraps err into a *GenerationError when it carries one.
func AsGeneration(err error) (*GenerationError, bool) {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
