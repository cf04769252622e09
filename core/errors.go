package core

import "errors"

// ErrConfiguration matches every configuration error returned by the timer
// and external interrupt configurators (errors.Is).
var ErrConfiguration = errors.New("configuration error")

// Code is a stable, wire-facing error identifier.
type Code string

func (c Code) Error() string { return string(c) }

const (
	CodeOK              Code = "ok"
	CodeInvalidTimer    Code = "invalid_timer"
	CodeInvalidChannel  Code = "invalid_channel"
	CodeInvalidMode     Code = "invalid_mode"
	CodeInvalidClock    Code = "invalid_clock"
	CodeInvalidOutput   Code = "invalid_output_mode"
	CodeInvalidLine     Code = "invalid_line"
	CodeUnsupportedEdge Code = "unsupported_edge"
	CodeNotConfigured   Code = "not_configured"
	CodeInvalidSource   Code = "invalid_source"
	CodeShutdown        Code = "shutdown"
	CodeError           Code = "error"
)

// ConfigError reports a rejected configuration. No register has been
// written when one is returned.
type ConfigError struct {
	Op   string
	C    Code
	What string
}

func (e *ConfigError) Error() string {
	msg := e.Op + ": " + string(e.C)
	if e.What != "" {
		msg += " (" + e.What + ")"
	}
	return msg
}

// Is makes errors.Is(err, ErrConfiguration) true for every ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigError) Unwrap() error { return e.C }

// Code returns the stable error code.
func (e *ConfigError) Code() Code { return e.C }

func configErr(op string, c Code, what string) error {
	return &ConfigError{Op: op, C: c, What: what}
}

// CodeOf extracts a Code from an error, defaulting to CodeError.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return CodeError
}
