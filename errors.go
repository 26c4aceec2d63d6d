package pipesh

import "fmt"

// ParseError reports a malformed input line.
type ParseError struct {
	// Offset is the byte offset in the line where the problem was found.
	Offset   int
	Fragment string
	Reason   string
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("parse error at offset %d near %q: %s", e.Offset, e.Fragment, e.Reason)
}

// UnknownCommandError reports a name missing from the Registry.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Name)
}

// ArgumentError reports arguments a Factory could not accept.
type ArgumentError struct {
	Command string
	Err     error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Command, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// ConversionError reports Data that cannot be presented as the kind a stage
// requires.
type ConversionError struct {
	// Stage is the 1-based position of the stage that required the kind, or
	// zero when the conversion happened outside a pipeline.
	Stage int
	From  Kind
	To    Kind
}

func (e *ConversionError) Error() string {
	if e.Stage == 0 {
		return fmt.Sprintf("cannot convert %s to %s", e.From, e.To)
	}
	return fmt.Sprintf("pipeline stage %d: cannot convert %s to %s", e.Stage, e.From, e.To)
}

// ExecutionError reports a failure raised while a command was running.
type ExecutionError struct {
	Stage   int
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pipeline stage %d (%s): %v", e.Stage, e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
