//go:build v8

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
	"errors"

	"github.com/theirish81/jsengine/backend"
	v8 "rogchap.com/v8go"
)

func init() {
	Register(backend.KindV8, NewV8)
}

// V8 is a V8 isolate with a single context.
type V8 struct {
	isolate *v8.Isolate
	context *v8.Context
}

func NewV8() (Native, error) {
	isolate := v8.NewIsolate()
	return &V8{isolate: isolate, context: v8.NewContext(isolate)}, nil
}

func (n *V8) Eval(code string, raw bool) (string, error) {
	val, err := n.context.RunScript(code, "jsengine.js")
	if err != nil {
		var jsErr *v8.JSError
		if errors.As(err, &jsErr) {
			return "", backend.NewProgramError(jsErr.Message)
		}
		return "", backend.NewRuntimeError(err, "v8")
	}
	if raw || val == nil {
		return "", nil
	}
	return val.String(), nil
}

func (n *V8) Close() {
	n.context.Close()
	n.isolate.Dispose()
}
