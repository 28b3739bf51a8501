// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError requests a non-zero exit without an "error:" line. The
// command has already written whatever the user needs to see.
//
// powerlog activity returns ExitError{Code: 2} when there is nothing
// new to read, so scripts can tell "caught up" from "failed".
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode satisfies the interface process.Fatal checks for.
func (e *ExitError) ExitCode() int {
	return e.Code
}
