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

// Package jsengine runs JavaScript on whatever engine the host offers, embedded or external, with one set
// of semantics: text in and out, JSON-shaped results and a single error taxonomy.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/external"
	"github.com/theirish81/jsengine/log"
	"github.com/theirish81/jsengine/util"
)

var globalName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

const initGlobalScript = `if (typeof global === 'undefined') {
    global = typeof Proxy === 'function' ? new Proxy(this, {}) : this;
}
if (typeof globalThis === 'undefined') {
    globalThis = this;
}
`

const deleteGlobalScript = `if (typeof %[1]s !== 'undefined') {
    delete %[1]s;
}
`

// Options are the engine construction options.
type Options struct {
	source            string
	initGlobal        bool
	initDeleteGlobals []string
	threading         bool
	kind              backend.Kind
	wholeProgram      bool
	registry          *Registry
	interpreter       *external.Interpreter
	spawner           external.Spawner
	config            *Config
	logger            *slog.Logger
	eventChannel      chan log.Event
	channelLevel      log.ChannelLevel
}

// Option is an option for the engine.
type Option func(*Options)

// WithLogger sets the slog logger events are written to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithEventChannel mirrors log events to a channel, debug events included when level is debug.
func WithEventChannel(channel chan log.Event, level log.ChannelLevel) Option {
	return func(o *Options) {
		o.eventChannel = channel
		o.channelLevel = level
	}
}

// WithSource sets the program the engine starts with.
func WithSource(source string) Option {
	return func(o *Options) {
		o.source = source
	}
}

// WithInitGlobal defines global and globalThis when the engine lacks them.
func WithInitGlobal(initGlobal bool) Option {
	return func(o *Options) {
		o.initGlobal = initGlobal
	}
}

// WithInitDeleteGlobals deletes the named globals before anything else runs.
func WithInitDeleteGlobals(names ...string) Option {
	return func(o *Options) {
		o.initDeleteGlobals = append(o.initDeleteGlobals, names...)
	}
}

// WithThreading serialises every operation on the engine so it can be shared between goroutines.
func WithThreading(threading bool) Option {
	return func(o *Options) {
		o.threading = threading
	}
}

// WithBackend selects the backend kind instead of the registry default.
func WithBackend(kind backend.Kind) Option {
	return func(o *Options) {
		o.kind = kind
	}
}

// WithWholeProgram makes thread-affine engines re-run the whole program on every evaluation.
func WithWholeProgram(wholeProgram bool) Option {
	return func(o *Options) {
		o.wholeProgram = wholeProgram
	}
}

// WithRegistry replaces DefaultRegistry.
func WithRegistry(registry *Registry) Option {
	return func(o *Options) {
		o.registry = registry
	}
}

// WithInterpreter uses the given external interpreter, implying the external backend.
func WithInterpreter(interpreter *external.Interpreter) Option {
	return func(o *Options) {
		o.interpreter = interpreter
	}
}

// WithSpawner replaces the process spawner of the external backend.
func WithSpawner(spawner external.Spawner) Option {
	return func(o *Options) {
		o.spawner = spawner
	}
}

// Engine is the entry point: it stages appended code, commits it to the backend when needed and returns
// evaluation results.
type Engine struct {
	backend backend.Backend
	buffer  *SourceBuffer
	mu      *sync.Mutex
	logger  *log.StreamerLogger
}

// New creates an engine. Backend selection errors are *CapabilityError.
func New(options ...Option) (*Engine, error) {
	opts := Options{channelLevel: log.InfoChannelLevel}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.registry == nil {
		opts.registry = DefaultRegistry
	}
	if opts.config != nil {
		if err := opts.config.Validate(); err != nil {
			return nil, err
		}
		if opts.interpreter == nil {
			interpreter, err := opts.config.interpreter()
			if err != nil {
				return nil, err
			}
			opts.interpreter = interpreter
		}
	}
	for _, name := range opts.initDeleteGlobals {
		if !globalName.MatchString(name) {
			return nil, fmt.Errorf("invalid global name %q", name)
		}
	}
	logger := log.NewStreamerLogger(opts.logger, opts.eventChannel, opts.channelLevel)
	b, err := opts.registry.NewBackend(opts.kind, opts.interpreter, opts, logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		backend: b,
		buffer:  &SourceBuffer{},
		logger:  logger,
	}
	if opts.threading {
		e.mu = &sync.Mutex{}
	}
	deleteGlobals := lo.Uniq(append(append([]string{}, opts.initDeleteGlobals...), b.Capabilities().HostGlobals...))
	if first := initScript(opts.initGlobal, deleteGlobals) + opts.source; !blank(first) {
		e.buffer.Stage(first)
	}
	logger.Debug(log.NewEvent(log.StartEventType, log.EngineComponent).
		WithMessage("engine created").WithBackend(string(b.Kind())))
	return e, nil
}

func initScript(initGlobal bool, deleteGlobals []string) string {
	var sb strings.Builder
	if initGlobal {
		sb.WriteString(initGlobalScript)
	}
	for _, name := range deleteGlobals {
		sb.WriteString(fmt.Sprintf(deleteGlobalScript, name))
	}
	return sb.String()
}

func (e *Engine) lock() func() {
	if e.mu == nil {
		return func() {}
	}
	e.mu.Lock()
	return e.mu.Unlock
}

// Kind returns the kind of the backend in use.
func (e *Engine) Kind() backend.Kind {
	return e.backend.Kind()
}

func (e *Engine) Capabilities() backend.Capabilities {
	return e.backend.Capabilities()
}

// Append stages code. It runs on the next Eval, Call or Source.
func (e *Engine) Append(ctx context.Context, code string) error {
	defer e.lock()()
	if blank(code) {
		return nil
	}
	chunk := e.buffer.Stage(code)
	e.logger.Debug(log.NewEvent(log.AppendEventType, log.EngineComponent).
		WithBackend(string(e.backend.Kind())).WithLength(len(chunk)))
	return nil
}

// AppendBytes is Append for undecoded text.
func (e *Engine) AppendBytes(ctx context.Context, code []byte) error {
	return e.Append(ctx, util.ToText(code))
}

// Eval runs code after every staged chunk and returns its value. Blank code returns nil.
func (e *Engine) Eval(ctx context.Context, code string) (any, error) {
	defer e.lock()()
	return e.eval(ctx, code)
}

// EvalBytes is Eval for undecoded text.
func (e *Engine) EvalBytes(ctx context.Context, code []byte) (any, error) {
	return e.Eval(ctx, util.ToText(code))
}

// Call invokes a global function with JSON-encoded arguments.
func (e *Engine) Call(ctx context.Context, identifier string, args ...any) (any, error) {
	defer e.lock()()
	if args == nil {
		args = []any{}
	}
	literal, err := util.EncodeLiteral(args, false)
	if err != nil {
		return nil, backend.NewRuntimeError(err, "cannot encode the arguments")
	}
	e.logger.Debug(log.NewEvent(log.CallEventType, log.EngineComponent).
		WithBackend(string(e.backend.Kind())).WithArg("identifier", identifier))
	return e.eval(ctx, identifier+"("+literal[1:len(literal)-1]+")")
}

// Source returns the whole program, staged chunks included once they have run.
func (e *Engine) Source(ctx context.Context) (string, error) {
	defer e.lock()()
	if err := e.flush(ctx); err != nil {
		return "", err
	}
	return e.buffer.Source(), nil
}

// Close releases the backend.
func (e *Engine) Close() error {
	defer e.lock()()
	e.logger.Debug(log.NewEvent(log.EndEventType, log.EngineComponent).
		WithBackend(string(e.backend.Kind())))
	return e.backend.Close()
}

func (e *Engine) eval(ctx context.Context, code string) (any, error) {
	if blank(code) {
		return nil, nil
	}
	if err := e.flush(ctx); err != nil {
		return nil, err
	}
	code = terminate(e.buffer.Repair(code))
	e.logger.Debug(log.NewEvent(log.EvalEventType, log.EngineComponent).
		WithBackend(string(e.backend.Kind())).WithLength(len(code)))
	value, err := e.backend.Eval(ctx, backend.Script{Code: code, Source: e.buffer.With(code)})
	if err != nil {
		e.logFailure(err)
		return nil, err
	}
	e.buffer.Commit(code)
	return value, nil
}

// flush sends standing chunks to the backend in order. A failing chunk is discarded and its error returned,
// the chunks after it stay staged.
func (e *Engine) flush(ctx context.Context) error {
	for {
		chunk, ok := e.buffer.Next()
		if !ok {
			return nil
		}
		if err := e.backend.Append(ctx, backend.Script{Code: chunk, Source: e.buffer.With(chunk)}); err != nil {
			e.buffer.Drop()
			e.logFailure(err)
			return err
		}
		e.buffer.Promote()
	}
}

// logFailure reports script errors at debug level, they are the caller's business. Plumbing failures are
// logged as errors.
func (e *Engine) logFailure(err error) {
	event := log.NewEvent(log.ErrorEventType, log.EngineComponent).
		WithBackend(string(e.backend.Kind())).WithErr(err)
	if errors.Is(err, backend.ErrProgram) {
		e.logger.Debug(event)
		return
	}
	e.logger.Err(event)
}
