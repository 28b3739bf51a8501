// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify implements payload-free, coalescing notifications.
//
// A [Broadcaster] delivers a named signal to every subscriber without
// ever blocking the poster. Each subscription is a channel of capacity
// one: posting while a signal is already pending is a no-op, so a slow
// subscriber sees "at least one post happened since you last looked"
// rather than a queue. This is the delivery guarantee the activity
// log's high-water mark needs: the reader only has to learn that it
// should drain, not how many times it was asked to.
package notify
