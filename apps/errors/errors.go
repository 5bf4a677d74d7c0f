// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package errors holds the error types returned by the auth cache. Construction problems are
reported with UnsupportedStorageError and ConfigurationError and are not recoverable; a host
store that leaves out an operation yields UnimplementedError on each call to it.

Errors returned by a host-supplied store are passed through untouched.
*/
package errors

import (
	"errors"
	"fmt"

	"github.com/kylelemons/godebug/pretty"
)

var prettyConf = &pretty.Config{IncludeUnexported: false, SkipZeroFields: true, TrackCycles: true}

type verboser interface {
	Verbose() string
}

// Verbose prints the most verbose error that the error message has.
func Verbose(err error) string {
	var v verboser
	if errors.As(err, &v) {
		return v.Verbose()
	}
	return err.Error()
}

// New is equivalent to errors.New().
func New(text string) error {
	return errors.New(text)
}

// Is is equivalent to errors.Is().
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is equivalent to errors.As().
func As(err error, target any) bool {
	return errors.As(err, target)
}

// UnsupportedStorageError is returned when a cache is asked to use a storage area that the
// host does not provide. Kind names the area, for example "localStorage".
type UnsupportedStorageError struct {
	Kind string
}

// Error implements error.Error().
func (e *UnsupportedStorageError) Error() string {
	return fmt.Sprintf("storage kind %q is not supported by this host", e.Kind)
}

// Verbose implements the verboser interface.
func (e *UnsupportedStorageError) Verbose() string {
	return fmt.Sprintf("%s:\n%s", e.Error(), prettyConf.Sprint(e))
}

// ConfigurationError reports an invalid option or configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements error.Error().
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid cache configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid cache configuration: %s: %s", e.Field, e.Reason)
}

// Verbose implements the verboser interface.
func (e *ConfigurationError) Verbose() string {
	return fmt.Sprintf("%s:\n%s", e.Error(), prettyConf.Sprint(e))
}

// UnimplementedError is returned by a host-supplied store for an operation it did not provide.
type UnimplementedError struct {
	Op string
}

// Error implements error.Error().
func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("host store does not implement %s", e.Op)
}
