/*
 * Copyright (C) 2026 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package embedded

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
)

// Native is a JavaScript context usable only from the thread that created it.
type Native interface {
	// Eval runs code in the global scope. It returns the string conversion of the completion value, or ""
	// when raw is set. A thrown value is reported as a *backend.ProgramError.
	Eval(code string, raw bool) (string, error)
	Close()
}

type NativeFactory func() (Native, error)

// Handle is the worker-side view of the native context. It must only be used inside functions passed to
// Worker.Do.
type Handle struct {
	factory    NativeFactory
	native     Native
	generation int
}

func (h *Handle) Eval(code string, raw bool) (string, error) {
	return h.native.Eval(code, raw)
}

// Reset replaces the native context with a fresh one.
func (h *Handle) Reset() error {
	native, err := h.factory()
	if err != nil {
		return err
	}
	h.native.Close()
	h.native = native
	h.generation++
	return nil
}

// Generation changes on every Reset.
func (h *Handle) Generation() int {
	return h.generation
}

type request struct {
	id    string
	fn    func(*Handle) (any, error)
	reply chan response
}

type response struct {
	id    string
	value any
	err   error
}

// Worker owns a native context on a locked OS thread and serves requests one at a time. Each request
// carries its own reply channel.
type Worker struct {
	handle    *Handle
	requests  chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	logger    *log.StreamerLogger
}

// StartWorker creates the native context on a dedicated thread and returns once it is ready.
func StartWorker(factory NativeFactory, logger *log.StreamerLogger) (*Worker, error) {
	w := &Worker{
		handle:   &Handle{factory: factory},
		requests: make(chan request),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger,
	}
	ready := make(chan error, 1)
	go w.loop(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	w.logger.Debug(log.NewEvent(log.StartEventType, log.WorkerComponent).WithMessage("worker started"))
	return w, nil
}

func (w *Worker) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.stopped)
	native, err := w.handle.factory()
	if err != nil {
		ready <- err
		return
	}
	w.handle.native = native
	ready <- nil
	for {
		select {
		case req := <-w.requests:
			value, err := w.serve(req)
			req.reply <- response{id: req.id, value: value, err: err}
		case <-w.done:
			w.handle.native.Close()
			return
		}
	}
}

func (w *Worker) serve(req request) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, backend.NewRuntimeError(fmt.Errorf("%v", r), "native engine panic")
		}
	}()
	return req.fn(w.handle)
}

// Do runs fn on the worker thread and waits for its outcome. Cancelling ctx stops the wait, not the native
// call already in progress.
func (w *Worker) Do(ctx context.Context, fn func(*Handle) (any, error)) (any, error) {
	req := request{id: uuid.NewString(), fn: fn, reply: make(chan response, 1)}
	select {
	case w.requests <- req:
	case <-w.done:
		return nil, backend.NewRuntimeError(nil, "the engine worker is closed")
	case <-ctx.Done():
		return nil, backend.NewRuntimeError(ctx.Err(), "evaluation cancelled")
	}
	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-ctx.Done():
		w.logger.Warn(log.NewEvent(log.WarningEventType, log.WorkerComponent).
			WithMessage("caller gave up waiting for the worker").WithCallID(req.id))
		return nil, backend.NewRuntimeError(ctx.Err(), "evaluation cancelled")
	}
}

// Close stops the worker after the request in progress, if any, and releases the native context.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		<-w.stopped
		w.logger.Debug(log.NewEvent(log.EndEventType, log.WorkerComponent).WithMessage("worker stopped"))
	})
}
