// Copyright 2025 The calltrack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !go1.23 || !(amd64 || arm64)

package goid

// No verified runtime.g layout for this toolchain or architecture.
const haveFast = false

func fast() int64 {
	return Slow()
}
