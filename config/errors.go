package config

import (
	"errors"
	"fmt"
)

// ErrUnknownOption is returned when a value is given for an option that is not
// declared.
var ErrUnknownOption = errors.New("unknown option")

// ErrInvalidOptionValue is returned when a value cannot be converted to the
// type of its option, or when it fails the option's validation.
var ErrInvalidOptionValue = errors.New("invalid option value")

// An OptionError reports the option and value that could not be applied.
type OptionError struct {
	Name  string
	Value any
	Err   error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %q (value %v): %v", e.Name, e.Value, e.Err)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}
