// Package track records function calls and object lifecycles from a host
// runtime and hands them to a consumer.
//
// The package wraps one process-wide tracking session. Hosts call the four
// hooks from any goroutine; the session keeps a call stack per goroutine,
// interns every file and function name once, and remembers where each live
// object was created so its destruction can point back at it.
//
// # Quick Start
//
// Buffered mode collects events until Stop:
//
//	track.Start(nil, nil)
//
//	track.RecordCall(track.CallInfo{Site: track.Site{File: "app.go", Line: 10, Symbol: "app.handle"}})
//	track.RecordReturn(track.ReturnInfo{Site: track.Site{File: "app.go", Line: 14, Symbol: "app.handle"}})
//
//	res, err := track.Stop()
//	for _, ev := range res.Events {
//		fmt.Println(ev.Kind, ev.Location.Function)
//	}
//
// Push mode hands each event to a callback as it happens:
//
//	track.Configure(track.WithMode(track.ModePush))
//	track.Start(func(ev *track.Event, _ any) {
//		fmt.Println(track.Resolve(ev).Location.Function)
//	}, nil)
//
// # API Overview
//
//   - Lifecycle: [Configure], [ConfigureFile], [Start], [Stop], [IsActive]
//   - Hooks: [RecordCall], [RecordReturn], [RecordCreate], [RecordDestroy], [Dispatch]
//   - Queries: [Count], [Events], [LookupCreation], [SessionID]
//   - Goroutine lifecycle: [ThreadDone], [ResetThread]
//   - Version information: [GetInfo], [Version]
//
// # Guarantees
//
// Stop waits for every hook and callback already running, then releases the
// string table. No event handed out afterwards refers to a released string:
// Stop returns resolved copies. Calling Stop (or Start) from inside a
// callback never deadlocks; Stop returns [ErrCalledFromProtectedSection]
// and the session keeps running.
//
// Events of one goroutine are recorded in hook order. Events of different
// goroutines interleave.
package track
