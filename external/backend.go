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

package external

import (
	"context"

	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
)

// HostGlobals are globals the interpreters themselves define and that scripts should not see.
var HostGlobals = []string{"exports"}

// Backend evaluates through an external interpreter. Every evaluation runs the whole committed program in a
// fresh process, so nothing is kept between calls.
type Backend struct {
	interpreter *Interpreter
	protocol    *Protocol
	logger      *log.StreamerLogger
}

type Option func(*options)

type options struct {
	spawner Spawner
	logger  *log.StreamerLogger
	argMax  [2]int
}

func WithSpawner(spawner Spawner) Option {
	return func(o *options) {
		o.spawner = spawner
	}
}

func WithLogger(logger *log.StreamerLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithArgLimits overrides the command line budget, total and per argument.
func WithArgLimits(total int, single int) Option {
	return func(o *options) {
		o.argMax = [2]int{total, single}
	}
}

func NewBackend(interpreter *Interpreter, opts ...Option) (*Backend, error) {
	if interpreter == nil {
		return nil, backend.NewCapabilityError(nil, "no external interpreter is set")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewStreamerLogger(nil, nil, log.InfoChannelLevel)
	}
	if interpreter.Incompatible() {
		o.logger.Warn(log.NewEvent(log.WarningEventType, log.BackendComponent).
			WithMessage("the interpreter lacks features most scripts need").
			WithInterpreter(interpreter.Name))
	}
	protocol := NewProtocol(interpreter, o.spawner, o.logger)
	if o.argMax[0] > 0 {
		protocol.SetArgLimits(o.argMax[0], o.argMax[1])
	}
	return &Backend{interpreter: interpreter, protocol: protocol, logger: o.logger}, nil
}

func (b *Backend) Kind() backend.Kind {
	return backend.KindExternal
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{HostGlobals: HostGlobals}
}

func (b *Backend) Interpreter() *Interpreter {
	return b.interpreter
}

// Append has nothing to do, the source travels with every Eval.
func (b *Backend) Append(_ context.Context, _ backend.Script) error {
	return nil
}

func (b *Backend) Eval(ctx context.Context, script backend.Script) (any, error) {
	return b.protocol.Run(ctx, script.Source)
}

func (b *Backend) Close() error {
	return nil
}
