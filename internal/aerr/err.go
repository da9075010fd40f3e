// Package aerr provides the typed sentinel errors used throughout the
// framework's error-handling design (see SPEC_FULL.md §7): categories the
// caller is expected to branch on get a typed struct; everything else is a
// plain wrapped error. Adapted from the teacher's cmn/cos/err.go.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package aerr

import (
	"fmt"
	"sync"
)

type (
	// ErrGone is returned whenever a handle's generation no longer matches
	// the slot's current occupant. It is never wrapped and never logged as
	// an error: it is the normal outcome of a benign cross-thread race.
	ErrGone struct {
		what string
	}

	// ErrNoCredit means a connector has no jetons available; the caller
	// must queue and retry, not fail outright.
	ErrNoCredit struct {
		peer string
	}

	// ErrWouldBlock mirrors the source's transient-wait category.
	ErrWouldBlock struct {
		what string
	}

	// ErrUnregisteredType is fatal: the codec's type map has no entry for
	// the dynamic type being serialized.
	ErrUnregisteredType struct {
		name string
	}

	// Errs aggregates multiple failures from a broadcast/visit operation.
	Errs struct {
		mu   sync.Mutex
		errs []error
	}
)

func NewErrGone(what string) *ErrGone                     { return &ErrGone{what} }
func (e *ErrGone) Error() string                          { return e.what + ": gone" }
func IsErrGone(err error) bool                             { _, ok := err.(*ErrGone); return ok }

func NewErrNoCredit(peer string) *ErrNoCredit { return &ErrNoCredit{peer} }
func (e *ErrNoCredit) Error() string          { return fmt.Sprintf("%s: no send credit", e.peer) }
func IsErrNoCredit(err error) bool             { _, ok := err.(*ErrNoCredit); return ok }

func NewErrWouldBlock(what string) *ErrWouldBlock { return &ErrWouldBlock{what} }
func (e *ErrWouldBlock) Error() string            { return e.what + ": would block" }
func IsErrWouldBlock(err error) bool               { _, ok := err.(*ErrWouldBlock); return ok }

func NewErrUnregisteredType(name string) *ErrUnregisteredType { return &ErrUnregisteredType{name} }
func (e *ErrUnregisteredType) Error() string                  { return fmt.Sprintf("unregistered type %q", e.name) }

func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
}

func (e *Errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return e
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	return fmt.Sprintf("%d errors, first: %v", len(e.errs), e.errs[0])
}
