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

// Package embedded runs JavaScript inside the current process. goja and otto are pure Go and always
// available; QuickJS and V8 are cgo engines compiled in with the quickjs and v8 build tags.
package embedded

import (
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
	"github.com/theirish81/jsengine/util"
)

var natives = util.NewSafeMap[backend.Kind, NativeFactory]()

// Register makes a thread-affine native engine available under the given kind. Tagged builds call it from
// init.
func Register(kind backend.Kind, factory NativeFactory) {
	natives.Store(kind, factory)
}

// Available tells whether the embedded kind can be constructed in this binary.
func Available(kind backend.Kind) bool {
	switch kind {
	case backend.KindGoja, backend.KindOtto:
		return true
	}
	_, ok := natives.Load(kind)
	return ok
}

// Natives lists the thread-affine native engines compiled into this binary.
func Natives() []backend.Kind {
	return util.SortedKeys(natives)
}

type Option func(*options)

type options struct {
	logger       *log.StreamerLogger
	wholeProgram bool
}

func WithLogger(logger *log.StreamerLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWholeProgram makes native engines re-run the whole program on every Eval instead of splitting the
// final expression from the preceding statements.
func WithWholeProgram(wholeProgram bool) Option {
	return func(o *options) {
		o.wholeProgram = wholeProgram
	}
}

// New builds an embedded backend of the given kind.
func New(kind backend.Kind, opts ...Option) (backend.Backend, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewStreamerLogger(nil, nil, log.InfoChannelLevel)
	}
	switch kind {
	case backend.KindGoja:
		return NewGoja(o.logger), nil
	case backend.KindOtto:
		return NewOtto(o.logger), nil
	}
	factory, ok := natives.Load(kind)
	if !ok {
		return nil, backend.NewCapabilityError(nil, "the %s backend is not compiled into this binary", kind)
	}
	b, err := NewNativeBackend(kind, factory, !o.wholeProgram, o.logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}
