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

package jsengine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/external"
	"github.com/theirish81/jsengine/log"
	"github.com/theirish81/jsengine/util"
)

func pureRegistry() *Registry {
	return NewRegistry(WithProbe(func(_ *log.StreamerLogger) Facts {
		return Facts{Embedded: []backend.Kind{backend.KindGoja, backend.KindOtto}}
	}))
}

func newTestEngine(t *testing.T, options ...Option) *Engine {
	t.Helper()
	e, err := New(append([]Option{WithRegistry(pureRegistry())}, options...)...)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

var pureKinds = []backend.Kind{backend.KindGoja, backend.KindOtto}

func TestEngine_Scenarios(t *testing.T) {
	ctx := context.Background()
	for _, kind := range pureKinds {
		t.Run(string(kind), func(t *testing.T) {
			e := newTestEngine(t, WithBackend(kind))
			assert.Equal(t, kind, e.Kind())

			res, err := e.Eval(ctx, "1+1")
			assert.NoError(t, err)
			assert.Equal(t, int64(2), res)

			res, err = e.Eval(ctx, "null")
			assert.NoError(t, err)
			assert.Nil(t, res)
			res, err = e.Eval(ctx, "undefined")
			assert.NoError(t, err)
			assert.Nil(t, res)

			assert.NoError(t, e.Append(ctx, "function f(a){return a}"))
			res, err = e.Eval(ctx, "f(41)+1")
			assert.NoError(t, err)
			assert.Equal(t, int64(42), res)

			res, err = e.Call(ctx, "f", "π≈3.14")
			assert.NoError(t, err)
			assert.Equal(t, "π≈3.14", res)

			_, err = e.Eval(ctx, "(function(){throw new Error('boom')})()")
			var programErr *ProgramError
			assert.True(t, errors.As(err, &programErr))
			assert.Contains(t, programErr.Error(), "boom")
		})
	}
}

func TestEngine_SeparatorRepair(t *testing.T) {
	ctx := context.Background()
	for _, kind := range pureKinds {
		t.Run(string(kind), func(t *testing.T) {
			e := newTestEngine(t, WithBackend(kind))
			assert.NoError(t, e.Append(ctx, "var x = 1"))
			assert.NoError(t, e.Append(ctx, "(x)"))
			res, err := e.Eval(ctx, "x")
			assert.NoError(t, err)
			assert.Equal(t, int64(1), res)

			assert.NoError(t, e.Append(ctx, "var s = 'abc'"))
			res, err = e.Eval(ctx, "/b/.test(s)")
			assert.NoError(t, err)
			assert.Equal(t, true, res)
		})
	}
}

func TestEngine_Source(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	assert.NoError(t, e.Append(ctx, "var a = 1"))
	assert.NoError(t, e.Append(ctx, "var b = 2"))
	src, err := e.Source(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "var a = 1\nvar b = 2", src)

	_, err = e.Eval(ctx, "a + b")
	assert.NoError(t, err)
	_, err = e.Eval(ctx, "throw new Error('not kept')")
	assert.Error(t, err)
	src, err = e.Source(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "var a = 1\nvar b = 2\na + b;", src)
}

func TestEngine_FlushFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	assert.NoError(t, e.Append(ctx, "var a = 1"))
	assert.NoError(t, e.Append(ctx, "var b = ("))
	assert.NoError(t, e.Append(ctx, "var c = 3"))

	_, err := e.Eval(ctx, "a")
	assert.ErrorIs(t, err, ErrProgram)

	src, err := e.Source(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "var a = 1\nvar c = 3", src)

	res, err := e.Eval(ctx, "a + c")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), res)
}

func TestEngine_Blank(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	assert.NoError(t, e.Append(ctx, "  \n\t"))
	res, err := e.Eval(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, res)
	src, err := e.Source(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "", src)
}

func TestEngine_RoundTrip(t *testing.T) {
	ctx := context.Background()
	values := []any{
		nil,
		true,
		false,
		int64(42),
		int64(-7),
		2.5,
		"plain",
		"π≈3.14 ✓   \"quoted\"",
		[]any{int64(1), "a", []any{}},
		map[string]any{"k": map[string]any{"n": nil, "list": []any{1.5, false}}},
	}
	for _, kind := range pureKinds {
		t.Run(string(kind), func(t *testing.T) {
			e := newTestEngine(t, WithBackend(kind))
			for _, v := range values {
				literal, err := util.EncodeLiteral(v, false)
				assert.NoError(t, err)
				res, err := e.Eval(ctx, "("+literal+")")
				assert.NoError(t, err)
				assert.Equal(t, v, res, literal)
			}
		})
	}
}

func TestEngine_Call(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	assert.NoError(t, e.Append(ctx, "function g() { return arguments.length }"))
	res, err := e.Call(ctx, "g")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), res)

	res, err = e.Call(ctx, "g", 1, "two", []int{3}, map[string]any{"four": 4}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), res)

	_, err = e.Call(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrProgram)
}

func TestEngine_Function(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	res, err := e.Eval(ctx, "(function (a) { return a * 2 })")
	assert.NoError(t, err)
	fn, ok := res.(*Function)
	assert.True(t, ok)
	out, err := fn.Call(ctx, 21)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), out)
}

func TestEngine_InitGlobal(t *testing.T) {
	ctx := context.Background()
	for _, kind := range pureKinds {
		t.Run(string(kind), func(t *testing.T) {
			e := newTestEngine(t, WithBackend(kind), WithInitGlobal(true), WithSource("var answer = 42;"))
			res, err := e.Eval(ctx, "typeof global")
			assert.NoError(t, err)
			assert.Equal(t, "object", res)
			res, err = e.Eval(ctx, "typeof globalThis")
			assert.NoError(t, err)
			assert.Equal(t, "object", res)
			res, err = e.Eval(ctx, "answer")
			assert.NoError(t, err)
			assert.Equal(t, int64(42), res)
		})
	}
}

func TestEngine_InitDeleteGlobals(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithInitDeleteGlobals("escape"))
	res, err := e.Eval(ctx, "typeof escape")
	assert.NoError(t, err)
	assert.Equal(t, "undefined", res)

	_, err = New(WithRegistry(pureRegistry()), WithInitDeleteGlobals("not valid"))
	assert.Error(t, err)
}

func TestEngine_Threading(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithThreading(true))
	assert.NoError(t, e.Append(ctx, "var counter = 0"))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Append(ctx, "counter++"))
			_, err := e.Eval(ctx, "counter")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	res, err := e.Eval(ctx, "counter")
	assert.NoError(t, err)
	assert.Equal(t, int64(20), res)
}

func TestEngine_Capabilities(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, backend.KindGoja, e.Kind())
	assert.True(t, e.Capabilities().Incremental)
	assert.False(t, e.Capabilities().ThreadAffine)
}

func TestEngine_Bytes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	assert.NoError(t, e.AppendBytes(ctx, []byte("\xef\xbb\xbfvar s = 'é'")))
	res, err := e.EvalBytes(ctx, []byte("s"))
	assert.NoError(t, err)
	assert.Equal(t, "é", res)
}

func TestEval(t *testing.T) {
	res, err := Eval(context.Background(), "[1, 'a'].length", WithRegistry(pureRegistry()))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), res)
}

// gojaSpawner plays an external interpreter by running the delivered script in goja.
type gojaSpawner struct{}

func (gojaSpawner) Run(_ context.Context, argv []string, stdin []byte) (external.Result, error) {
	script := string(stdin)
	switch {
	case stdin != nil:
	case len(argv) >= 3 && argv[len(argv)-2] == "-e":
		script = argv[len(argv)-1]
	default:
		data, err := os.ReadFile(argv[len(argv)-1])
		if err != nil {
			return external.Result{}, err
		}
		script = string(data)
	}
	vm := goja.New()
	var out strings.Builder
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		out.WriteString(call.Argument(0).String() + "\n")
		return goja.Undefined()
	})
	_ = vm.Set("console", console)
	// general purpose runtimes leak a module object
	_ = vm.Set("exports", vm.NewObject())
	if _, err := vm.RunString(script); err != nil {
		return external.Result{ExitCode: 1, Stderr: []byte(err.Error())}, nil
	}
	return external.Result{Stdout: []byte(out.String())}, nil
}

func fakeNode(t *testing.T) *external.Interpreter {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable bit not available")
	}
	path := filepath.Join(t.TempDir(), "node")
	assert.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	interpreter, err := external.NewInterpreter(path, external.InterpreterOptions{})
	assert.NoError(t, err)
	return interpreter
}

func TestEngine_External(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithInterpreter(fakeNode(t)), WithSpawner(gojaSpawner{}))
	assert.Equal(t, backend.KindExternal, e.Kind())
	assert.False(t, e.Capabilities().Incremental)

	res, err := e.Eval(ctx, "typeof exports")
	assert.NoError(t, err)
	assert.Equal(t, "undefined", res)

	assert.NoError(t, e.Append(ctx, "function f(a){return a}"))
	res, err = e.Eval(ctx, "f(41)+1")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), res)

	res, err = e.Call(ctx, "f", "π≈3.14")
	assert.NoError(t, err)
	assert.Equal(t, "π≈3.14", res)

	_, err = e.Eval(ctx, "(function(){throw new Error('boom')})()")
	assert.ErrorIs(t, err, ErrProgram)
	assert.Contains(t, err.Error(), "boom")

	// too long for the command line, delivered through a temp file instead
	long := strings.Repeat("a", 200*1024)
	res, err = e.Eval(ctx, "'"+long+"'.length")
	assert.NoError(t, err)
	assert.Equal(t, int64(len(long)), res)
}
