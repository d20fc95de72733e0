package voice

import (
	"context"
	"errors"

	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

// ErrDispatcherStopped is returned when the consumer loop is no longer running.
var ErrDispatcherStopped = errors.New("voice: dispatcher stopped")

// Event is one vendor tool call carrying key/value pairs for a session.
type Event struct {
	SessionID   string
	ToolCallID  string
	Arguments   map[string]string
	Confidences map[string]float64
}

// Outcome is the result of applying an Event.
type Outcome struct {
	Result intake.BatchResult
	Err    error
}

// ApplyFunc applies one event. It is only ever called from the Run goroutine.
type ApplyFunc func(ctx context.Context, ev Event) (intake.BatchResult, error)

type job struct {
	ctx   context.Context
	event Event
	reply chan Outcome
}

// Dispatcher serializes vendor events through a single consumer so that the
// order events were accepted in is the order they are merged in.
type Dispatcher struct {
	ch     chan job
	done   chan struct{}
	apply  ApplyFunc
	logger *logging.Logger
}

func NewDispatcher(buffer int, apply ApplyFunc, logger *logging.Logger) *Dispatcher {
	if apply == nil {
		panic("voice: dispatcher apply func cannot be nil")
	}
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		ch:     make(chan job, buffer),
		done:   make(chan struct{}),
		apply:  apply,
		logger: logger,
	}
}

// Enqueue queues ev and returns a channel that receives its Outcome.
// It blocks while the buffer is full until ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, ev Event) (<-chan Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	j := job{ctx: ctx, event: ev, reply: make(chan Outcome, 1)}
	select {
	case <-d.done:
		return nil, ErrDispatcherStopped
	default:
	}
	select {
	case d.ch <- j:
		return j.reply, nil
	case <-d.done:
		return nil, ErrDispatcherStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit enqueues ev and waits for it to be applied.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) (intake.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reply, err := d.Enqueue(ctx, ev)
	if err != nil {
		return intake.BatchResult{}, err
	}
	return d.await(ctx, reply)
}

// Done is closed once Run has stopped. Callers holding an Enqueue reply
// should watch it too: a job sent while Run is shutting down can land after
// the final drain and will never be answered.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) await(ctx context.Context, reply <-chan Outcome) (intake.BatchResult, error) {
	select {
	case out := <-reply:
		return out.Result, out.Err
	case <-d.done:
		select {
		case out := <-reply:
			return out.Result, out.Err
		default:
			return intake.BatchResult{}, ErrDispatcherStopped
		}
	case <-ctx.Done():
		return intake.BatchResult{}, ctx.Err()
	}
}

// Run drains the queue until ctx is done. Only one Run may be active.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("voice dispatcher started", "buffer", cap(d.ch))
	for {
		select {
		case <-ctx.Done():
			close(d.done)
			d.drain()
			d.logger.Info("voice dispatcher stopped")
			return ctx.Err()
		case j := <-d.ch:
			d.handle(j)
		}
	}
}

func (d *Dispatcher) handle(j job) {
	if err := j.ctx.Err(); err != nil {
		j.reply <- Outcome{Err: err}
		return
	}
	res, err := d.apply(j.ctx, j.event)
	j.reply <- Outcome{Result: res, Err: err}
}

// drain fails whatever is still buffered so no caller waits forever.
func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.ch:
			j.reply <- Outcome{Err: ErrDispatcherStopped}
		default:
			return
		}
	}
}
