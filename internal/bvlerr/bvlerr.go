// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package bvlerr defines the error taxonomy shared by every brickvol package.
package bvlerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error by its recovery policy.
type Kind int

const (
	// IO covers open/read/write/mmap failures.
	IO Kind = iota
	// Format covers bad magic, unsupported version, truncated header, checksum mismatch.
	Format
	// Protocol covers malformed requests, wrong arity, out-of-range indices.
	Protocol
	// Resource covers atlas-full or otherwise exhausted local resources.
	Resource
	// Transport covers socket timeouts and partial reads.
	Transport
	// Corruption covers decode-length mismatches and out-of-range voxel values.
	Corruption
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "IO"
	case Format:
		return "Format"
	case Protocol:
		return "Protocol"
	case Resource:
		return "Resource"
	case Transport:
		return "Transport"
	case Corruption:
		return "Corruption"
	default:
		return "Unknown"
	}
}

// Error is the typed error carried across every package boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches a stack trace (via pkg/errors) and a recovery-policy Kind to err.
// A nil err returns nil, so call sites can Wrap(..., err) unconditionally.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// Is reports whether err (or any error in its chain) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
