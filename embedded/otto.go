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
	"errors"
	"sync"

	"github.com/robertkrimen/otto"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
)

var errHalted = errors.New("halted")

// Otto is the otto backend, an ES5 interpreter.
type Otto struct {
	mu     sync.Mutex
	vm     *otto.Otto
	logger *log.StreamerLogger
}

func NewOtto(logger *log.StreamerLogger) *Otto {
	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)
	return &Otto{vm: vm, logger: logger}
}

func (o *Otto) Kind() backend.Kind {
	return backend.KindOtto
}

func (o *Otto) Capabilities() backend.Capabilities {
	return backend.Capabilities{Incremental: true, NativeFunctions: true}
}

func (o *Otto) Append(ctx context.Context, script backend.Script) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.guard(ctx, func() (otto.Value, error) {
		return o.vm.Run(script.Code)
	})
	return err
}

func (o *Otto) Eval(ctx context.Context, script backend.Script) (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, err := o.guard(ctx, func() (otto.Value, error) {
		return o.vm.Run(script.Code)
	})
	if err != nil {
		return nil, err
	}
	return o.export(v)
}

func (o *Otto) Invoke(ctx context.Context, ref any, args []any) (any, error) {
	fn, ok := ref.(otto.Value)
	if !ok || !fn.IsFunction() {
		return nil, backend.NewRuntimeError(nil, "not an otto function: %T", ref)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	v, err := o.guard(ctx, func() (otto.Value, error) {
		return fn.Call(otto.UndefinedValue(), args...)
	})
	if err != nil {
		return nil, err
	}
	return o.export(v)
}

func (o *Otto) Close() error {
	return nil
}

// guard runs fn, halting the VM through its interrupt channel if ctx is cancelled meanwhile.
func (o *Otto) guard(ctx context.Context, fn func() (otto.Value, error)) (v otto.Value, err error) {
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			o.vm.Interrupt <- func() {
				panic(errHalted)
			}
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-stopped
		// drop an interrupt that arrived after the run completed
		select {
		case <-o.vm.Interrupt:
		default:
		}
		if caught := recover(); caught != nil {
			if caught != errHalted {
				panic(caught)
			}
			v, err = otto.UndefinedValue(), backend.NewRuntimeError(ctx.Err(), "evaluation interrupted")
		}
	}()
	v, err = fn()
	if err != nil {
		return v, backend.NewProgramError(err.Error())
	}
	return v, nil
}

func (o *Otto) export(v otto.Value) (any, error) {
	switch {
	case v.IsUndefined(), v.IsNull():
		return nil, nil
	case v.IsFunction():
		return backend.NewFunction(o, v), nil
	case v.IsObject():
		json, err := o.vm.Get("JSON")
		if err != nil {
			return nil, backend.NewRuntimeError(err, "JSON is not available")
		}
		text, err := json.Object().Call("stringify", v)
		if err != nil || !text.IsString() {
			return nil, backend.NewRuntimeError(err, backend.UnsupportedTypeMessage)
		}
		return backend.DecodeJSON(text.String())
	}
	exported, err := v.Export()
	if err != nil {
		return nil, backend.NewRuntimeError(err, backend.UnsupportedTypeMessage)
	}
	return backend.Normalize(exported)
}
