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

	"github.com/dop251/goja"
	"github.com/samber/lo"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
)

// Goja is the goja backend. goja runtimes can move between goroutines but not be used by two at once, so
// a mutex is enough.
type Goja struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	logger *log.StreamerLogger
}

func NewGoja(logger *log.StreamerLogger) *Goja {
	return &Goja{vm: goja.New(), logger: logger}
}

func (g *Goja) Kind() backend.Kind {
	return backend.KindGoja
}

func (g *Goja) Capabilities() backend.Capabilities {
	return backend.Capabilities{Incremental: true, NativeFunctions: true}
}

func (g *Goja) Append(ctx context.Context, script backend.Script) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.guard(ctx, func() (goja.Value, error) {
		return g.vm.RunString(script.Code)
	})
	return err
}

func (g *Goja) Eval(ctx context.Context, script backend.Script) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, err := g.guard(ctx, func() (goja.Value, error) {
		return g.vm.RunString(script.Code)
	})
	if err != nil {
		return nil, err
	}
	return g.export(v)
}

func (g *Goja) Invoke(ctx context.Context, ref any, args []any) (any, error) {
	fn, ok := ref.(goja.Callable)
	if !ok {
		return nil, backend.NewRuntimeError(nil, "not a goja function: %T", ref)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	values := lo.Map(args, func(arg any, _ int) goja.Value {
		return g.vm.ToValue(arg)
	})
	v, err := g.guard(ctx, func() (goja.Value, error) {
		return fn(goja.Undefined(), values...)
	})
	if err != nil {
		return nil, err
	}
	return g.export(v)
}

func (g *Goja) Close() error {
	return nil
}

// guard runs fn, interrupting the VM if ctx is cancelled meanwhile.
func (g *Goja) guard(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			g.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()
	v, err := fn()
	close(stop)
	<-stopped
	g.vm.ClearInterrupt()
	if err != nil {
		return nil, gojaError(err)
	}
	return v, nil
}

func gojaError(err error) error {
	var exception *goja.Exception
	var interrupted *goja.InterruptedError
	var syntax *goja.CompilerSyntaxError
	switch {
	case errors.As(err, &interrupted):
		cause, _ := interrupted.Value().(error)
		return backend.NewRuntimeError(cause, "evaluation interrupted")
	case errors.As(err, &exception):
		if exception.Value() == nil {
			return backend.NewProgramError(exception.Error())
		}
		return backend.NewProgramError(exception.Value().String())
	case errors.As(err, &syntax):
		return backend.NewProgramError(syntax.Error())
	}
	return backend.NewRuntimeError(err, "goja")
}

func (g *Goja) export(v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return backend.NewFunction(g, fn), nil
	}
	if _, ok := v.(*goja.Symbol); ok {
		// Symbol.Export yields the description string
		return nil, backend.NewRuntimeError(nil, "%s: symbol", backend.UnsupportedTypeMessage)
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return backend.Normalize(v.Export())
	}
	data, err := obj.MarshalJSON()
	if err != nil {
		return nil, backend.NewRuntimeError(err, backend.UnsupportedTypeMessage)
	}
	return backend.DecodeJSON(string(data))
}
