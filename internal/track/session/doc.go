// Package session orchestrates one tracking session.
//
// A Session owns the string table, the shutdown barrier, the event store, the
// creation map, and the per-goroutine context registry. Hooks route every raw
// event through the barrier:
//
//	RecordCall ─→ TryEnter ─→ intern + push ─→ store (or callback) ─→ Leave
//
// Stop closes the barrier, waits for in-flight hooks to drain, resolves the
// buffered events into plain strings, and tears everything down. Handles
// issued during the session are invalid afterwards; the Result does not
// reference them.
//
// Delivery Modes:
//
//   - ModeBuffered: events accumulate in the store and are returned by Stop.
//   - ModePush: the callback sees each event synchronously, inside the
//     protected section. Its handles are valid for the duration of the call.
//
// Stop from inside a callback returns ErrCalledFromProtectedSection and
// leaves the session active. Call Stop again from outside.
//
// Example:
//
//	s := session.New(session.WithMode(session.ModeBuffered))
//	if err := s.Start(nil, nil); err != nil {
//	    return err
//	}
//	s.RecordCall(event.CallInfo{Site: event.Site{File: "main.go", Line: 10, Symbol: "main.run"}})
//	s.RecordReturn(event.ReturnInfo{ObjectID: 42})
//	res, err := s.Stop()
package session
