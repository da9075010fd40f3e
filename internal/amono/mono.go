//go:build !mono

// Package amono provides a monotonic nanosecond clock used throughout the
// scheduler for deadline arithmetic.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package amono

import "time"

// NanoTime returns a monotonically increasing nanosecond counter. The
// fallback build (this file) goes through time.Now(); the `mono` build tag
// selects the go:linkname fast path in mono_linkname.go instead.
func NanoTime() int64 { return time.Now().UnixNano() }
