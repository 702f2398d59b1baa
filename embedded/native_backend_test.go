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
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
)

var fakeNativesClosed atomic.Int32

// fakeNative stands in for a cgo engine: a goja runtime only reachable through string evaluation.
type fakeNative struct {
	vm *goja.Runtime
}

func newFakeNative() (Native, error) {
	return &fakeNative{vm: goja.New()}, nil
}

func (n *fakeNative) Eval(code string, raw bool) (string, error) {
	v, err := n.vm.RunString(code)
	if err != nil {
		return "", gojaError(err)
	}
	if raw || v == nil {
		return "", nil
	}
	return v.String(), nil
}

func (n *fakeNative) Close() {
	fakeNativesClosed.Add(1)
}

func newFakeBackend(t *testing.T, incremental bool) *NativeBackend {
	t.Helper()
	b, err := NewNativeBackend("fake", newFakeNative, incremental, log.NewStreamerLogger(nil, nil, log.InfoChannelLevel))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSplitProgram(t *testing.T) {
	tests := []struct {
		code       string
		ok         bool
		statements string
		expression string
		tail       string
	}{
		{code: "1+1;", ok: true, statements: "", expression: "1+1"},
		{code: "1+1;;", ok: true, statements: "", expression: "1+1"},
		{code: "var x = 1; x + 1;", ok: true, statements: "var x = 1", expression: "x + 1"},
		{code: "var x = 1;\n(x);", ok: true, statements: "var x = 1", expression: "(x)"},
		{code: "function f() {}\nf() // call\n", ok: true, statements: "function f() {}", expression: "f() // call"},
		{code: "var x = 1;", ok: true, statements: "var x = 1"},
		{code: "let x = 1;", ok: true, statements: "let x = 1"},
		{code: "if (true) { 1 }", ok: true, tail: "if (true) { 1 }"},
		{code: "if (true) { 5 };", ok: true, tail: "if (true) { 5 }"},
		{code: "var a = 1; try { 'ok' } finally {};", ok: true, statements: "var a = 1", tail: "try { 'ok' } finally {}"},
		{code: "", ok: true},
		{code: "function ( {", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			split, ok := SplitProgram(tt.code)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				// the boundary may fall on either side of the separating semicolon
				assert.Equal(t, tt.statements, strings.TrimRight(split.Statements, "; \n"))
				assert.Equal(t, tt.expression, split.Expression)
				assert.Equal(t, tt.tail, strings.TrimRight(split.Tail, "; \n"))
			}
		})
	}
}

func TestNativeBackend_Completion(t *testing.T) {
	ctx := context.Background()
	natives := map[string]*NativeBackend{
		"incremental":   newFakeBackend(t, true),
		"whole program": newFakeBackend(t, false),
	}
	for mode, native := range natives {
		pure := NewGoja(log.NewStreamerLogger(nil, nil, log.InfoChannelLevel))
		for _, code := range []string{
			"if (true) { 5 };",
			"try { 'ok' } finally {};",
			"{ 1+1 };",
			"var n = 0; for (var i = 0; i < 3; i++) { n += i }",
			"var q = 1;",
			"1 +",
		} {
			t.Run(mode+"/"+code, func(t *testing.T) {
				script := backend.Script{Code: code, Source: code}
				want, wantErr := pure.Eval(ctx, script)
				got, gotErr := native.Eval(ctx, script)
				assert.Equal(t, want, got)
				assert.Equal(t, wantErr == nil, gotErr == nil)
				if wantErr != nil {
					assert.ErrorIs(t, gotErr, backend.ErrProgram)
				}
			})
		}
	}
}

func TestNativeBackend_Incremental(t *testing.T) {
	b := newFakeBackend(t, true)
	ctx := context.Background()
	assert.True(t, b.Capabilities().Incremental)
	assert.True(t, b.Capabilities().NativeFunctions)

	res, err := b.Eval(ctx, backend.Script{Code: "1+1;"})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), res)

	assert.NoError(t, b.Append(ctx, backend.Script{Code: "function f(a){return a}"}))
	res, err = b.Eval(ctx, backend.Script{Code: "var y = f(41); y + 1;"})
	assert.NoError(t, err)
	assert.Equal(t, int64(42), res)

	res, err = b.Eval(ctx, backend.Script{Code: "y;"})
	assert.NoError(t, err)
	assert.Equal(t, int64(41), res)

	res, err = b.Eval(ctx, backend.Script{Code: "var z = 3;"})
	assert.NoError(t, err)
	assert.Nil(t, res)

	res, err = b.Eval(ctx, backend.Script{Code: "undefined;"})
	assert.NoError(t, err)
	assert.Nil(t, res)

	res, err = b.Eval(ctx, backend.Script{Code: "({a: 'é', b: [null, 1.5]});"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "é", "b": []any{nil, 1.5}}, res)
}

func TestNativeBackend_Errors(t *testing.T) {
	b := newFakeBackend(t, true)
	ctx := context.Background()

	_, err := b.Eval(ctx, backend.Script{Code: "(function(){throw new Error('boom')})();"})
	assert.ErrorIs(t, err, backend.ErrProgram)
	assert.Contains(t, err.Error(), "boom")

	_, err = b.Eval(ctx, backend.Script{Code: "var a = {}; a.a = a; a;"})
	assert.ErrorIs(t, err, backend.ErrRuntime)
	assert.Contains(t, err.Error(), backend.UnsupportedTypeMessage)

	err = b.Append(ctx, backend.Script{Code: "function ( {"})
	assert.ErrorIs(t, err, backend.ErrProgram)
}

func TestNativeBackend_Function(t *testing.T) {
	b := newFakeBackend(t, true)
	ctx := context.Background()
	res, err := b.Eval(ctx, backend.Script{Code: "(function (a, b) { return {sum: a + b, name: b} });"})
	assert.NoError(t, err)
	fn, ok := res.(*backend.Function)
	assert.True(t, ok)
	out, err := fn.Call(ctx, 1, "π")
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": "1π", "name": "π"}, out)

	res, err = b.Eval(ctx, backend.Script{Code: "(function () { return function () { return 7 } });"})
	assert.NoError(t, err)
	inner, err := res.(*backend.Function).Call(ctx)
	assert.NoError(t, err)
	out, err = inner.(*backend.Function).Call(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), out)
}

func TestNativeBackend_WholeProgram(t *testing.T) {
	b := newFakeBackend(t, false)
	ctx := context.Background()
	assert.False(t, b.Capabilities().Incremental)

	res, err := b.Eval(ctx, backend.Script{Code: "x + 1;", Source: "var x = 1;\nx + 1;"})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), res)

	res, err = b.Eval(ctx, backend.Script{Code: "(function () { return x });", Source: "var x = 5;\n(function () { return x });"})
	assert.NoError(t, err)
	fn := res.(*backend.Function)
	out, err := fn.Call(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), out)

	// the next Eval discards the context the function lived in
	_, err = b.Eval(ctx, backend.Script{Code: "1;", Source: "1;"})
	assert.NoError(t, err)
	_, err = fn.Call(ctx)
	assert.ErrorIs(t, err, backend.ErrRuntime)
}

func TestWorker_Concurrent(t *testing.T) {
	b := newFakeBackend(t, true)
	ctx := context.Background()
	assert.NoError(t, b.Append(ctx, backend.Script{Code: "var counter = 0;"}))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Eval(ctx, backend.Script{Code: "counter++;"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	res, err := b.Eval(ctx, backend.Script{Code: "counter;"})
	assert.NoError(t, err)
	assert.Equal(t, int64(20), res)
}

func TestWorker_Lifecycle(t *testing.T) {
	before := fakeNativesClosed.Load()
	w, err := StartWorker(newFakeNative, log.NewStreamerLogger(nil, nil, log.InfoChannelLevel))
	assert.NoError(t, err)

	res, err := w.Do(context.Background(), func(h *Handle) (any, error) {
		panic("kaboom")
	})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, backend.ErrRuntime)

	res, err = w.Do(context.Background(), func(h *Handle) (any, error) {
		assert.NoError(t, h.Reset())
		return h.Generation(), nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, res)

	w.Close()
	w.Close()
	assert.Equal(t, before+2, fakeNativesClosed.Load())
	_, err = w.Do(context.Background(), func(h *Handle) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, backend.ErrRuntime)
}

func TestWorker_FactoryError(t *testing.T) {
	_, err := StartWorker(func() (Native, error) {
		return nil, errors.New("no library")
	}, log.NewStreamerLogger(nil, nil, log.InfoChannelLevel))
	assert.EqualError(t, err, "no library")

	_, err = NewNativeBackend("broken", func() (Native, error) {
		return nil, errors.New("no library")
	}, true, nil)
	assert.ErrorIs(t, err, backend.ErrCapability)
}
