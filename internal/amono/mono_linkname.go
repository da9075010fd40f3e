//go:build mono

// Package amono provides a monotonic nanosecond clock used throughout the
// scheduler for deadline arithmetic.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package amono

import (
	_ "unsafe" // for go:linkname
)

// https://golang.org/pkg/runtime/?m=all#nanotime
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64
