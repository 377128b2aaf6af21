package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a message is sent while the event channel is not open
	ErrNotConnected = errors.New("not connected to the agent")
	// ErrNoSession is returned when no session id has been announced yet
	ErrNoSession = errors.New("no session id assigned by the server")
	// ErrEmptyMessage is returned for blank input
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInconsistentChart marks a plot suggestion that resolves to an image chart
	ErrInconsistentChart = errors.New("plot suggestion resolved to image type")
)

// TransportError represents failures talking to the agent backend
type TransportError struct {
	Op     string // "dial", "read", "submit"
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error: %s %s (status %d): %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError represents an event payload that does not have the expected shape
type ProtocolError struct {
	EventType string
	Field     string
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("protocol error [%s] field %q: %v", e.EventType, e.Field, e.Err)
	}
	return fmt.Sprintf("protocol error [%s]: %v", e.EventType, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid or missing configuration value
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ChartError represents a chart suggestion that cannot be normalized
type ChartError struct {
	Objective string
	Type      string
	Err       error
}

func (e *ChartError) Error() string {
	return fmt.Sprintf("chart error [%s] %s: %v", e.Type, e.Objective, e.Err)
}

func (e *ChartError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
