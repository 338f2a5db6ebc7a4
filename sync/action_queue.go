package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	gosync "sync"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultFlushThreshold = 2000
	DefaultQueueCapacity  = 10000
)

var ErrQueueClosed = errors.New("action queue is closed")

// Sink receives batches of actions.
type Sink interface {
	Send(ctx context.Context, actions []ActionEvent) error
}

type QueueStats struct {
	Enqueued int
	Sent     int
	Batches  int
	Failed   int
}

// ActionQueue buffers actions and hands them to a sink in batches of
// threshold actions. A single accumulator goroutine owns the buffer and
// a single flush goroutine calls the sink, so batches reach the sink in
// the order they were filled.
type ActionQueue struct {
	sink      Sink
	threshold int
	logCtx    *log.Entry

	input   chan ActionEvent
	flushes chan []ActionEvent

	flushed chan struct{}

	closeMu gosync.RWMutex
	closed  bool

	statsMu gosync.Mutex
	stats   QueueStats
	errs    []error
}

// NewActionQueue starts the queue goroutines. ctx is used for sink calls and
// must outlive Drain.
func NewActionQueue(ctx context.Context, sink Sink, threshold int, capacity int, logCtx *log.Entry) *ActionQueue {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if logCtx == nil {
		logCtx = log.NewEntry(log.StandardLogger())
	}
	q := &ActionQueue{
		sink:      sink,
		threshold: threshold,
		logCtx:    logCtx,
		input:     make(chan ActionEvent, capacity),
		flushes:   make(chan []ActionEvent, 1),
		flushed:   make(chan struct{}),
	}
	go q.accumulate()
	go q.flush(ctx)
	return q
}

// Push enqueues an action. It blocks while the input is full.
func (q *ActionQueue) Push(ctx context.Context, action ActionEvent) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.input <- action:
		q.statsMu.Lock()
		q.stats.Enqueued++
		q.statsMu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ActionQueue) accumulate() {
	defer close(q.flushes)
	buffer := make([]ActionEvent, 0, q.threshold)
	for action := range q.input {
		buffer = append(buffer, action)
		if len(buffer) >= q.threshold {
			q.flushes <- slices.Clone(buffer)
			buffer = buffer[:0]
		}
	}
	if len(buffer) > 0 {
		q.flushes <- slices.Clone(buffer)
	}
}

func (q *ActionQueue) flush(ctx context.Context) {
	defer close(q.flushed)
	for batch := range q.flushes {
		err := q.sink.Send(ctx, batch)
		q.statsMu.Lock()
		q.stats.Batches++
		if err != nil {
			q.stats.Failed += len(batch)
			q.errs = append(q.errs, err)
		} else {
			q.stats.Sent += len(batch)
		}
		q.statsMu.Unlock()
		if err != nil {
			q.logCtx.WithError(err).WithField("batch_size", len(batch)).Error("Failed to send actions.")
		} else {
			q.logCtx.WithField("batch_size", len(batch)).Debug("Sent actions.")
		}
	}
}

// Drain stops accepting actions, flushes whatever is buffered and waits for
// every batch to be sent. It returns the sink errors joined together.
func (q *ActionQueue) Drain(ctx context.Context) error {
	q.closeMu.Lock()
	if !q.closed {
		q.closed = true
		close(q.input)
	}
	q.closeMu.Unlock()

	select {
	case <-q.flushed:
	case <-ctx.Done():
		return fmt.Errorf("action queue drain interrupted %w", ctx.Err())
	}

	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return errors.Join(q.errs...)
}

func (q *ActionQueue) Stats() QueueStats {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return q.stats
}
