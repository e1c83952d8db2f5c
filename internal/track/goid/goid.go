// Copyright 2025 The calltrack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package goid extracts the current goroutine ID.
//
// The tracking core keeps per-goroutine state (call stack, barrier depth) in a
// registry keyed by goroutine ID, so Current sits on every hook's path. Go has
// no public accessor for the ID. Two implementations exist:
//
//   - Fast path (amd64 and arm64, Go 1.23 and later): an assembly stub returns
//     the runtime's g pointer and the goid field is read at its known offset.
//     About 1-2ns per call.
//   - Slow path (everything else): the ID is parsed from the header line of
//     runtime.Stack, about 1500ns per call:
//
//	goroutine 123 [running]:
//
// The fast path is checked against the slow path at init, on two goroutines.
// Any disagreement disables it for the life of the process.
package goid

import "runtime"

// fastEnabled is set once at init and never written afterwards.
var fastEnabled = haveFast && fastAgrees()

func fastAgrees() bool {
	if fast() != Slow() {
		return false
	}
	ok := make(chan bool)
	go func() { ok <- fast() == Slow() }()
	return <-ok
}

// Current returns the current goroutine ID.
//
// Returns:
//   - int64: Goroutine ID (always positive), or 0 if parsing fails
func Current() int64 {
	if fastEnabled {
		return fast()
	}
	return Slow()
}

// Fast reports whether Current reads the ID directly from the runtime.
func Fast() bool {
	return fastEnabled
}

// Slow returns the current goroutine ID parsed from runtime.Stack.
func Slow() int64 {
	// Only the first line is needed.
	// Format: "goroutine 123 [running]:\n..."
	var buf [64]byte

	n := runtime.Stack(buf[:], false)

	return Parse(buf[:n])
}

// Parse extracts the goroutine ID from stack trace bytes.
//
// Expected format: "goroutine 123 [running]:..."
// Returns the numeric ID (123 in this example) or 0 if parsing fails.
//
// No string conversion of the whole buffer and no regexp: the digits are
// accumulated directly from the bytes.
func Parse(buf []byte) int64 {
	const prefix = "goroutine "
	const prefixLen = len(prefix)

	if len(buf) < prefixLen {
		return 0
	}

	if string(buf[:prefixLen]) != prefix {
		return 0
	}

	var gid int64
	for i := prefixLen; i < len(buf); i++ {
		//nolint:gosec // G602: i is always < len(buf) due to loop condition
		c := buf[i]
		if c >= '0' && c <= '9' {
			gid = gid*10 + int64(c-'0')
		} else {
			// Non-digit terminates the ID (usually space before "[running]").
			break
		}
	}

	return gid
}

// Live returns the IDs of all goroutines that currently exist.
//
// Uses runtime.Stack(all=true), which stops the world. Cost is roughly 1ms
// per 1000 goroutines, so callers should amortize it.
func Live() []int64 {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return ParseAll(buf[:n])
		}
		// Truncated dump would hide goroutines; grow and retry.
		buf = make([]byte, len(buf)*2)
	}
}

// ParseAll extracts every goroutine ID from a runtime.Stack(all=true) dump.
//
// Input format:
//
//	goroutine 1 [running]:
//	main.main()
//	    /path/to/main.go:10 +0x20
//
//	goroutine 5 [chan receive]:
//	...
func ParseAll(buf []byte) []int64 {
	var gids []int64

	i := 0
	for i < len(buf) {
		end := i
		for end < len(buf) && buf[end] != '\n' {
			end++
		}

		if gid := Parse(buf[i:end]); gid != 0 {
			gids = append(gids, gid)
		}

		i = end + 1
	}

	return gids
}
