//go:build !debug

// Package adebug provides invariant assertions compiled out of production
// builds and enabled with `-tags debug`.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package adebug

import "sync"

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func AssertFunc(_ func() bool, _ ...any) {}

func AssertMutexLocked(_ *sync.Mutex)     {}
func AssertRWMutexLocked(_ *sync.RWMutex) {}
