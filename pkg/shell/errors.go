package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArgument is returned when a built-in needs an operand.
	ErrMissingArgument = errors.New("missing argument")
	// ErrUnknownCommand is returned for names absent from the registry.
	ErrUnknownCommand = errors.New("command not found")
)

// ArgumentError names the operand a command was missing.
type ArgumentError struct {
	What string
}

func (e *ArgumentError) Error() string {
	return e.What + " not specified"
}

func (e *ArgumentError) Unwrap() error {
	return ErrMissingArgument
}

// UnknownCommandError is returned when no built-in matches the name.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownCommand.Error(), e.Name)
}

func (e *UnknownCommandError) Unwrap() error {
	return ErrUnknownCommand
}

// NotFoundError reports a target that could not be resolved. The message
// carries the argument as typed; the resolver's reason stays reachable
// through Unwrap.
type NotFoundError struct {
	Arg string
	Err error
}

func (e *NotFoundError) Error() string {
	return "path not found: " + e.Arg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}
