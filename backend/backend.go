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

// Package backend holds the contract every execution backend implements, together with the unified error
// taxonomy and the marshalling rules that turn backend-native values into caller values.
package backend

import "context"

// Kind identifies a backend variant.
type Kind string

const (
	KindGoja     Kind = "goja"
	KindOtto     Kind = "otto"
	KindQuickJS  Kind = "quickjs"
	KindV8       Kind = "v8"
	KindExternal Kind = "external"
)

// Kinds lists every known backend variant, embedded ones first.
var Kinds = []Kind{KindQuickJS, KindGoja, KindV8, KindOtto, KindExternal}

// Embedded tells whether the kind runs inside this process.
func (k Kind) Embedded() bool {
	return k != KindExternal
}

// Capabilities describes what a backend instance can do and how it has to be driven.
type Capabilities struct {
	// Incremental is false when every Eval executes the whole accumulated program from scratch.
	Incremental bool
	// ThreadAffine is true when the native resource is owned by a single worker goroutine.
	ThreadAffine bool
	// NativeFunctions is true when callable results come back as *Function handles.
	NativeFunctions bool
	// HostGlobals are globals leaked by the host that should be deleted at startup.
	HostGlobals []string
}

// Script is one unit of work for a backend. Code is the newly committed suffix, Source is the whole program
// including Code. Incremental backends only look at Code.
type Script struct {
	Code   string
	Source string
}

// Backend executes JavaScript against a persistent execution context.
type Backend interface {
	Kind() Kind
	Capabilities() Capabilities
	// Append executes a statement for its side effects, the value is discarded.
	Append(ctx context.Context, script Script) error
	// Eval executes a statement or expression and returns its value.
	Eval(ctx context.Context, script Script) (any, error)
	Close() error
}
