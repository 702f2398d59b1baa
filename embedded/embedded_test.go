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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
)

func pureBackends() map[string]backend.Backend {
	logger := log.NewStreamerLogger(nil, nil, log.InfoChannelLevel)
	return map[string]backend.Backend{
		"goja": NewGoja(logger),
		"otto": NewOtto(logger),
	}
}

func run(b backend.Backend, code string) (any, error) {
	return b.Eval(context.Background(), backend.Script{Code: code, Source: code})
}

func TestPure_Eval(t *testing.T) {
	for name, b := range pureBackends() {
		t.Run(name, func(t *testing.T) {
			res, err := run(b, "1+1;")
			assert.NoError(t, err)
			assert.Equal(t, int64(2), res)

			res, err = run(b, "null;")
			assert.NoError(t, err)
			assert.Nil(t, res)

			res, err = run(b, "undefined;")
			assert.NoError(t, err)
			assert.Nil(t, res)

			assert.NoError(t, b.Append(context.Background(), backend.Script{Code: "function f(a){return a}"}))
			res, err = run(b, "f(41)+1;")
			assert.NoError(t, err)
			assert.Equal(t, int64(42), res)

			res, err = run(b, "f('π≈3.14');")
			assert.NoError(t, err)
			assert.Equal(t, "π≈3.14", res)

			res, err = run(b, "var o = {a: [1, 2.5, 'x'], b: {c: true}}; o;")
			assert.NoError(t, err)
			assert.Equal(t, map[string]any{"a": []any{int64(1), 2.5, "x"}, "b": map[string]any{"c": true}}, res)

			res, err = run(b, "0/0;")
			assert.NoError(t, err)
			assert.True(t, math.IsNaN(res.(float64)))
		})
	}
}

func TestPure_ProgramError(t *testing.T) {
	for name, b := range pureBackends() {
		t.Run(name, func(t *testing.T) {
			_, err := run(b, "(function(){throw new Error('boom')})();")
			assert.ErrorIs(t, err, backend.ErrProgram)
			assert.Contains(t, err.Error(), "boom")

			_, err = run(b, "function ( {")
			assert.ErrorIs(t, err, backend.ErrProgram)

			// state before the failure is kept
			assert.NoError(t, b.Append(context.Background(), backend.Script{Code: "var kept = 7;"}))
			_, err = run(b, "kept = 8; missing();")
			assert.ErrorIs(t, err, backend.ErrProgram)
			res, err := run(b, "kept;")
			assert.NoError(t, err)
			assert.Equal(t, int64(8), res)
		})
	}
}

func TestPure_Function(t *testing.T) {
	for name, b := range pureBackends() {
		t.Run(name, func(t *testing.T) {
			assert.True(t, b.Capabilities().NativeFunctions)
			res, err := run(b, "(function (a, b) { return a + b });")
			assert.NoError(t, err)
			fn, ok := res.(*backend.Function)
			assert.True(t, ok)
			out, err := fn.Call(context.Background(), 2, 3)
			assert.NoError(t, err)
			assert.Equal(t, int64(5), out)
		})
	}
}

func TestGoja_Unsupported(t *testing.T) {
	b := NewGoja(log.NewStreamerLogger(nil, nil, log.InfoChannelLevel))
	_, err := run(b, "var a = {}; a.a = a; a;")
	assert.ErrorIs(t, err, backend.ErrRuntime)
	assert.False(t, errors.Is(err, backend.ErrProgram))

	_, err = run(b, "Symbol('s');")
	assert.ErrorIs(t, err, backend.ErrRuntime)

	out, err := run(b, "Symbol.iterator;")
	assert.ErrorIs(t, err, backend.ErrRuntime)
	assert.Nil(t, out)

	_, err = run(b, "BigInt(10);")
	assert.ErrorIs(t, err, backend.ErrRuntime)
}

func TestPure_Cancel(t *testing.T) {
	for name, b := range pureBackends() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := b.Eval(ctx, backend.Script{Code: "while (true) {}"})
			assert.ErrorIs(t, err, backend.ErrRuntime)

			// the interrupt does not leak into the next run
			res, err := run(b, "3;")
			assert.NoError(t, err)
			assert.Equal(t, int64(3), res)
		})
	}
}

func TestNew(t *testing.T) {
	b, err := New(backend.KindGoja)
	assert.NoError(t, err)
	assert.Equal(t, backend.KindGoja, b.Kind())

	b, err = New(backend.KindOtto)
	assert.NoError(t, err)
	assert.Equal(t, backend.KindOtto, b.Kind())

	assert.True(t, Available(backend.KindGoja))
	assert.False(t, Available(backend.Kind("spidermonkey")))
	_, err = New(backend.Kind("spidermonkey"))
	assert.ErrorIs(t, err, backend.ErrCapability)

	Register(backend.Kind("fake"), newFakeNative)
	defer natives.Delete(backend.Kind("fake"))
	assert.True(t, Available(backend.Kind("fake")))
	assert.Contains(t, Natives(), backend.Kind("fake"))
	b, err = New(backend.Kind("fake"), WithWholeProgram(true))
	assert.NoError(t, err)
	defer b.Close()
	assert.False(t, b.Capabilities().Incremental)
	assert.True(t, b.Capabilities().ThreadAffine)
}
