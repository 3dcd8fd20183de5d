package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TerminalError represents a failed terminal call that may be retriable
type TerminalError struct {
	Op        string // Operation that failed (e.g., "fetch_tick", "copy_buffer")
	Symbol    string // Instrument involved, if any
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *TerminalError) Error() string {
	if e.Symbol == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Symbol + ": " + e.Err.Error()
}

func (e *TerminalError) IsRetriable() bool {
	return e.Retriable
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// NewTerminalError creates a retriable terminal error
func NewTerminalError(op, symbol string, err error) *TerminalError {
	return &TerminalError{Op: op, Symbol: symbol, Err: err, Retriable: true}
}

// NewFatalTerminalError creates a non-retriable terminal error
func NewFatalTerminalError(op, symbol string, err error) *TerminalError {
	return &TerminalError{Op: op, Symbol: symbol, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrNoQuote is returned when no tick has been received for a symbol yet
	ErrNoQuote = errors.New("no quote received")

	// ErrUnknownSymbol is returned when a symbol is not defined on the terminal
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrUnknownField is returned for a metadata field the terminal does not expose
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidHandle is returned when an indicator handle is released or was never issued
	ErrInvalidHandle = errors.New("invalid indicator handle")

	// ErrShortBuffer is returned when a buffer copy yields fewer values than requested
	ErrShortBuffer = errors.New("short buffer copy")

	// ErrOffline is returned while the terminal link for a symbol is down. Usually retriable.
	ErrOffline = errors.New("terminal offline")

	// ErrRequestTimeout is returned when a gateway request gets no response in time
	ErrRequestTimeout = errors.New("request timed out")
)
