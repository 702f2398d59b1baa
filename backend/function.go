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

package backend

import (
	"context"
	"encoding/json"
)

// Invoker is implemented by backends able to call back into a function value they returned.
type Invoker interface {
	Invoke(ctx context.Context, ref any, args []any) (any, error)
}

// Function is an opaque handle to a callable living inside a backend context. The native reference never
// leaves the backend: calls are always forwarded to the context that produced it.
type Function struct {
	invoker Invoker
	ref     any
}

func NewFunction(invoker Invoker, ref any) *Function {
	return &Function{invoker: invoker, ref: ref}
}

// Call invokes the function with the given arguments and marshals the result like any other evaluation.
func (f *Function) Call(ctx context.Context, args ...any) (any, error) {
	return f.invoker.Invoke(ctx, f.ref, args)
}

func (f *Function) String() string {
	return "[function]"
}

func (f *Function) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Function) MarshalYAML() (any, error) {
	return f.String(), nil
}
