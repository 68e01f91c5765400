package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls how emitted events are buffered before they reach
// the sink.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher decouples the authorization decision path from the audit
// sink. Events are queued to a single delivery goroutine; a slow or
// unavailable sink slows delivery, never the caller. With DropIfFull
// set, overflow beyond the queue is shed and counted instead of
// blocking.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue    chan Event
	stop     chan struct{}
	finished chan struct{}

	shed     atomic.Uint64
	stopping atomic.Bool
	once     sync.Once
}

// NewDispatcher starts the delivery worker. A disabled config yields a
// nil dispatcher, and every method tolerates a nil receiver, so
// callers emit unconditionally.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes whatever is still queued at shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues the event for delivery. Without DropIfFull the caller
// blocks on a full queue until there is room, the context ends, or the
// dispatcher shuts down.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopping.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.dropIfFull {
		select {
		case d.queue <- event:
		case <-ctx.Done():
		case <-d.stop:
		}
		return
	}

	select {
	case d.queue <- event:
	case <-d.stop:
	default:
		d.shed.Add(1)
	}
}

// Close stops intake, drains the queue into the sink, and waits for
// the worker to finish. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.stopping.Store(true)
		close(d.stop)
		<-d.finished
	})
}

// Dropped reports how many events were shed because the queue was
// full. Shedding is an accepted trade for a non-blocking decision
// path; the counter lets operators alert on it.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.shed.Load()
}
