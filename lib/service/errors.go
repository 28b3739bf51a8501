// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
)

// Response codes. These strings are part of the wire protocol.
const (
	CodeBadArgument = "bad-argument"
	CodeNotFound    = "not-found"
	CodeNoMemory    = "no-memory"
	CodeNotOpen     = "not-open"
	CodeInternal    = "internal"
)

// CodedError is a handler error with a response code.
type CodedError struct {
	Code string
	Err  error
}

// Errorf returns a CodedError whose message is formatted as by
// fmt.Errorf, so %w wrapping is preserved.
func Errorf(code, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Err: fmt.Errorf(format, args...)}
}

// WithCode attaches code to err.
func WithCode(code string, err error) *CodedError {
	return &CodedError{Code: code, Err: err}
}

func (e *CodedError) Error() string { return e.Err.Error() }

func (e *CodedError) Unwrap() error { return e.Err }

// codeOf returns the response code for a handler error.
func codeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// ServiceError is returned by Client.Call when the server responds
// with ok=false.
type ServiceError struct {
	Action  string
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
	}
	return fmt.Sprintf("service error on %q (%s): %s", e.Action, e.Code, e.Message)
}

// HasCode reports whether err is a ServiceError with the given code.
func HasCode(err error, code string) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr) && serviceErr.Code == code
}
