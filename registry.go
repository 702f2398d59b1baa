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
	"errors"
	"runtime"
	"sync"

	"github.com/samber/lo"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/embedded"
	"github.com/theirish81/jsengine/external"
	"github.com/theirish81/jsengine/log"
)

// Facts is what a probe learns about the host.
type Facts struct {
	Embedded    []backend.Kind
	Interpreter *external.Interpreter
}

// Probe discovers the backends available on the host.
type Probe func(logger *log.StreamerLogger) Facts

// HostProbe checks the embedded engines compiled into the binary and looks for an external interpreter on
// the PATH.
func HostProbe(logger *log.StreamerLogger) Facts {
	facts := Facts{
		Embedded: lo.Filter(backend.Kinds, func(kind backend.Kind, _ int) bool {
			return kind.Embedded() && embedded.Available(kind)
		}),
	}
	path, ok := external.Detect(runtime.GOOS, external.Which)
	if !ok {
		logger.Debug(log.NewEvent(log.DetectEventType, log.RegistryComponent).
			WithMessage("no external interpreter found"))
		return facts
	}
	interpreter, err := external.NewInterpreter(path, external.InterpreterOptions{})
	if err != nil {
		logger.Warn(log.NewEvent(log.DetectEventType, log.RegistryComponent).
			WithMessage("cannot use the detected interpreter").WithErr(err))
		return facts
	}
	logger.Debug(log.NewEvent(log.DetectEventType, log.RegistryComponent).
		WithMessage("external interpreter found").WithInterpreter(interpreter.String()))
	facts.Interpreter = interpreter
	return facts
}

// Registry answers which backends can be used. The probe runs at most once until Reset.
type Registry struct {
	mu       sync.Mutex
	probe    Probe
	facts    *Facts
	override *external.Interpreter
	logger   *log.StreamerLogger
}

type RegistryOption func(*Registry)

// WithProbe replaces host detection.
func WithProbe(probe Probe) RegistryOption {
	return func(r *Registry) {
		r.probe = probe
	}
}

func WithRegistryLogger(logger *log.StreamerLogger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{probe: HostProbe}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewStreamerLogger(nil, nil, log.InfoChannelLevel)
	}
	return r
}

// DefaultRegistry is used by engines that were not given one.
var DefaultRegistry = NewRegistry()

func (r *Registry) load() Facts {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.facts == nil {
		facts := r.probe(r.logger)
		r.facts = &facts
	}
	facts := *r.facts
	if r.override != nil {
		facts.Interpreter = r.override
	}
	return facts
}

// Reset forgets what the probe found, the next question probes again. The override is kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts = nil
}

// IsAvailable tells whether a backend kind can be constructed.
func (r *Registry) IsAvailable(kind backend.Kind) bool {
	facts := r.load()
	if kind == backend.KindExternal {
		return facts.Interpreter != nil
	}
	return lo.Contains(facts.Embedded, kind)
}

// Available lists the usable kinds in order of preference.
func (r *Registry) Available() []backend.Kind {
	return lo.Filter(backend.Kinds, func(kind backend.Kind, _ int) bool {
		return r.IsAvailable(kind)
	})
}

// DefaultBackend returns the preferred usable kind.
func (r *Registry) DefaultBackend() (backend.Kind, error) {
	available := r.Available()
	if len(available) == 0 {
		return "", backend.NewCapabilityError(nil, "no supported JavaScript engine found")
	}
	return available[0], nil
}

// DefaultInterpreter returns the installed or detected external interpreter, if any.
func (r *Registry) DefaultInterpreter() *external.Interpreter {
	return r.load().Interpreter
}

// SetDefaultInterpreter installs a process-wide default external interpreter in place of the detected one.
func (r *Registry) SetDefaultInterpreter(path string, opts external.InterpreterOptions) (*external.Interpreter, error) {
	interpreter, err := external.NewInterpreter(path, opts)
	if err != nil {
		reason := err.Error()
		var capability *backend.CapabilityError
		if errors.As(err, &capability) {
			reason = capability.Message
		}
		return nil, backend.NewCapabilityError(r.names(), "cannot use %s as the external interpreter: %s", path,
			reason)
	}
	r.mu.Lock()
	r.override = interpreter
	r.mu.Unlock()
	return interpreter, nil
}

func (r *Registry) names() []string {
	return lo.Map(r.Available(), func(kind backend.Kind, _ int) string {
		return string(kind)
	})
}

// NewBackend constructs a backend. An empty kind picks the default, or the external backend when an
// interpreter is given.
func (r *Registry) NewBackend(kind backend.Kind, interpreter *external.Interpreter, o Options,
	logger *log.StreamerLogger) (backend.Backend, error) {
	if kind == "" && interpreter != nil {
		kind = backend.KindExternal
	}
	if kind == "" {
		var err error
		if kind, err = r.DefaultBackend(); err != nil {
			return nil, err
		}
	}
	switch {
	case kind == backend.KindExternal:
		if interpreter == nil {
			interpreter = r.DefaultInterpreter()
		}
		if interpreter == nil {
			return nil, backend.NewCapabilityError(r.names(), "no supported external interpreter found")
		}
		opts := []external.Option{external.WithLogger(logger)}
		if o.spawner != nil {
			opts = append(opts, external.WithSpawner(o.spawner))
		}
		b, err := external.NewBackend(interpreter, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	case !lo.Contains(backend.Kinds, kind):
		return nil, backend.NewCapabilityError(r.names(), "unknown backend %q", kind)
	case !r.IsAvailable(kind):
		return nil, backend.NewCapabilityError(r.names(), "the %s backend is not available", kind)
	}
	b, err := embedded.New(kind, embedded.WithLogger(logger), embedded.WithWholeProgram(o.wholeProgram))
	var capabilityErr *backend.CapabilityError
	if errors.As(err, &capabilityErr) {
		capabilityErr.Available = r.names()
	}
	return b, err
}
