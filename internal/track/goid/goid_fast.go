// Copyright 2025 The calltrack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build go1.23 && (amd64 || arm64)

package goid

import "unsafe"

const haveFast = true

// getg returns the current goroutine's runtime.g pointer.
// Implemented in goid_amd64.s and goid_arm64.s.
func getg() unsafe.Pointer

// fast reads the goid field of runtime.g at goidOffset.
//
//go:nosplit
func fast() int64 {
	g := getg()
	if g == nil {
		return Slow()
	}
	return *(*int64)(unsafe.Add(g, goidOffset))
}
