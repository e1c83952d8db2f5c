// Package intern implements the string table that backs every location,
// function name and type tag held by the tracking core.
//
// The table deduplicates strings and hands out handles. Two calls with equal
// content return the identical handle for the lifetime of one table, so
// frames can be compared by handle identity instead of content.
//
// # Design
//
// Storage is split in two:
//
//   - Arena: append-only chunks of entries. A chunk is allocated once and never
//     reallocated, so an entry never moves once created. Handles point into
//     the arena.
//   - Index: an open-addressing hash table (FNV-1a, linear probing) mapping a
//     content hash to an arena slot. It doubles and is rebuilt when the load
//     factor exceeds 0.75. Rebuilding touches only slot numbers.
//
// Because growth never relocates an entry, a handle returned before a resize
// is still valid after any number of resizes.
//
// # Thread Safety
//
// A single mutex guards lookup, insert and resize. The table favours
// correctness over lock-free throughput: interning happens once per distinct
// string and the hot path is dominated by hits.
//
// # Lifetime
//
// Destroy invalidates every handle issued by the table. Reading a handle after
// that is a programming error and panics. Interning into a destroyed table
// panics as well. A new session creates a new table.
//
// # Usage
//
//	tab := intern.New(0)
//	h1 := tab.InternString("main.go")
//	h2 := tab.InternString("main.go")
//	// h1 == h2
//	fmt.Println(h1.String()) // main.go
//	tab.Destroy()
package intern
