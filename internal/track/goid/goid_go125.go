// Copyright 2025 The calltrack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build go1.25 && (amd64 || arm64)

package goid

// goidOffset is the offset of runtime.g.goid from Go 1.25, where gobuf lost
// its ret field and shrank to 48 bytes. Later releases rely on the init
// check in goid.go to fall back if the layout moves.
const goidOffset = 152
