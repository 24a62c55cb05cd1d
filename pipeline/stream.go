package pipeline

import (
	"context"
	"fmt"
	"iter"
	"strings"

	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/graph"
)

// Stream answers a question like Ask but yields an Event after every
// completed node. The loop executes exactly once; the events are a live view
// of that single run, and the terminal event carries the Result. Breaking out
// of the iteration cancels the run.
func (p *Pipeline) Stream(ctx context.Context, question, token string) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		question = strings.TrimSpace(question)
		if question == "" {
			yield(nil, fmt.Errorf("%w: question is empty", claimerrors.ErrInvalidInput))
			return
		}
		if token == "" {
			token = NewToken()
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		type item struct {
			ev  *Event
			err error
		}
		ch := make(chan item)

		var sink eventSink = func(ev *Event) {
			select {
			case ch <- item{ev: ev}:
			case <-ctx.Done():
			}
		}

		st := newRunState(token, question)
		state := graph.State{
			runStateKey:  st,
			eventSinkKey: sink,
		}

		go func() {
			defer close(ch)
			if _, err := p.graph.Execute(ctx, state); err != nil {
				select {
				case ch <- item{err: err}:
				case <-ctx.Done():
				}
			}
		}()

		for it := range ch {
			if !yield(it.ev, it.err) {
				cancel()
				for range ch {
					// drain until the run goroutine notices the cancel
				}
				return
			}
		}
	}
}
