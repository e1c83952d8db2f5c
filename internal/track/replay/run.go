package replay

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kolkov/calltrack/internal/track/event"
)

// Recorder receives replayed events. *session.Session satisfies it.
type Recorder interface {
	Dispatch(raw *event.Raw)
	ThreadDone()
}

// cancelCheckInterval is how many events a thread replays between context
// checks.
const cancelCheckInterval = 256

// Run replays tr into rec, one goroutine per recorded thread.
//
// Events of one thread are dispatched in file order. Threads interleave
// freely. Each goroutine calls ThreadDone when its script ends. Returns the
// context error if ctx is cancelled first.
func Run(ctx context.Context, rec Recorder, tr *Trace) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, script := range tr.Threads {
		g.Go(func() error {
			defer rec.ThreadDone()

			for i := range script.Events {
				if i%cancelCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				rec.Dispatch(&script.Events[i])
			}
			return nil
		})
	}

	return g.Wait()
}
