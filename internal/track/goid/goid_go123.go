// Copyright 2025 The calltrack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build go1.23 && !go1.25 && (amd64 || arm64)

package goid

// goidOffset is the offset of runtime.g.goid on Go 1.23 and 1.24.
//
// g struct layout up to goid:
//
//	Field          Size    Offset
//	-----          ----    ------
//	stack          16      0
//	stackguard0    8       16
//	stackguard1    8       24
//	_panic         8       32
//	_defer         8       40
//	m              8       48
//	sched (gobuf)  56      56   (sp, pc, g, ctxt, ret, lr, bp)
//	syscallsp      8       112
//	syscallpc      8       120
//	syscallbp      8       128
//	stktopsp       8       136
//	param          8       144
//	atomicstatus   4       152
//	stackLock      4       156
//	goid           8       160
const goidOffset = 160
