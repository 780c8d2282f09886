// Package serial runs functions one at a time on a dedicated goroutine.
package serial

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("serial executor closed")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Executor applies submitted functions strictly in submission order, never two at once.
type Executor struct {
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New starts the worker. queue bounds how many submissions may wait.
func New(queue int) *Executor {
	if queue < 0 {
		queue = 0
	}
	e := &Executor{
		jobs: make(chan job, queue),
		quit: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Executor) run() {
	defer e.wg.Done()
	for {
		select {
		case j := <-e.jobs:
			e.exec(j)
		case <-e.quit:
			// Drain what was accepted before Close.
			for {
				select {
				case j := <-e.jobs:
					e.exec(j)
				default:
					return
				}
			}
		}
	}
}

func (e *Executor) exec(j job) {
	if err := j.ctx.Err(); err != nil {
		j.done <- err
		return
	}
	j.done <- j.fn(j.ctx)
}

// Do runs fn on the worker and returns its error. A job whose ctx is cancelled before
// it starts is skipped. Once started, fn runs to completion even if the caller stops
// waiting.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case <-e.quit:
		return ErrClosed
	default:
	}
	select {
	case e.jobs <- j:
	case <-e.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for accepted jobs to finish.
func (e *Executor) Close() {
	e.once.Do(func() { close(e.quit) })
	e.wg.Wait()
}
