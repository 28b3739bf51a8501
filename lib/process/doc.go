// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper shared by powerlogd and
// the powerlog CLI: reporting a fatal error from main() before or
// after the structured logger exists.
package process
