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
	"strconv"
	"strings"

	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
	"github.com/theirish81/jsengine/util"
)

const helperName = "__jsengineHelper"

// helperScript is installed in every native context. marshal turns a value into a ["tag", payload] JSON
// pair that survives any native-to-Go bridge, and parks callables in refs so they can be invoked later.
const helperScript = `Object.defineProperty(globalThis, '` + helperName + `', {
    value: (function () {
        var refs = [];
        return {
            refs: refs,
            marshal: function (v) {
                if (typeof v === 'function') {
                    return JSON.stringify(['function', refs.push(v) - 1]);
                }
                try {
                    return JSON.stringify(['value', v === undefined ? null : v]);
                } catch (e) {
                    return JSON.stringify(['unsupported', String(e)]);
                }
            }
        };
    })(),
    writable: false,
    enumerable: false,
    configurable: false
});`

// NativeBackend drives a thread-affine native engine through a Worker. Values cross the bridge as JSON
// text produced by the helper script.
type NativeBackend struct {
	kind        backend.Kind
	worker      *Worker
	incremental bool
	logger      *log.StreamerLogger
}

// NewNativeBackend starts a worker around the native factory. When incremental is false every Eval
// rebuilds the context and runs the whole program.
func NewNativeBackend(kind backend.Kind, factory NativeFactory, incremental bool,
	logger *log.StreamerLogger) (*NativeBackend, error) {
	if logger == nil {
		logger = log.NewStreamerLogger(nil, nil, log.InfoChannelLevel)
	}
	worker, err := StartWorker(withHelper(factory), logger)
	if err != nil {
		return nil, backend.NewCapabilityError(nil, "cannot start the %s engine: %s", kind, err.Error())
	}
	return &NativeBackend{kind: kind, worker: worker, incremental: incremental, logger: logger}, nil
}

func withHelper(factory NativeFactory) NativeFactory {
	return func() (Native, error) {
		native, err := factory()
		if err != nil {
			return nil, err
		}
		if _, err := native.Eval(helperScript, true); err != nil {
			native.Close()
			return nil, err
		}
		return native, nil
	}
}

func (b *NativeBackend) Kind() backend.Kind {
	return b.kind
}

func (b *NativeBackend) Capabilities() backend.Capabilities {
	return backend.Capabilities{Incremental: b.incremental, ThreadAffine: true, NativeFunctions: true}
}

func (b *NativeBackend) Append(ctx context.Context, script backend.Script) error {
	_, err := b.worker.Do(ctx, func(h *Handle) (any, error) {
		_, err := h.Eval(script.Code, true)
		return nil, err
	})
	return err
}

func (b *NativeBackend) Eval(ctx context.Context, script backend.Script) (any, error) {
	return b.worker.Do(ctx, func(h *Handle) (any, error) {
		text, err := b.evalWire(h, script)
		if err != nil || text == "" {
			return nil, err
		}
		return backend.DecodeWire(text, &nativeInvoker{backend: b, generation: h.Generation()})
	})
}

// evalWire returns the marshalled value of the script, or "" when it has none.
func (b *NativeBackend) evalWire(h *Handle, script backend.Script) (string, error) {
	if !b.incremental {
		if err := h.Reset(); err != nil {
			return "", backend.NewRuntimeError(err, "cannot reset the %s context", b.kind)
		}
		return b.evalCompletion(h, script.Source)
	}
	split, ok := SplitProgram(script.Code)
	if !ok {
		return b.evalCompletion(h, script.Code)
	}
	if strings.TrimSpace(split.Statements) != "" {
		if _, err := h.Eval(split.Statements, true); err != nil {
			return "", err
		}
	}
	switch {
	case split.Expression != "":
		return h.Eval(helperName+".marshal((\n"+split.Expression+"\n))", false)
	case split.Tail != "":
		return b.evalCompletion(h, split.Tail)
	}
	return "", nil
}

// evalCompletion marshals the completion value of code, which runs through a global eval.
func (b *NativeBackend) evalCompletion(h *Handle, code string) (string, error) {
	literal, err := util.EncodeLiteral(code, false)
	if err != nil {
		return "", backend.NewRuntimeError(err, "cannot encode the source")
	}
	return h.Eval(helperName+".marshal(eval("+literal+"))", false)
}

func (b *NativeBackend) Close() error {
	b.worker.Close()
	return nil
}

// nativeInvoker calls functions parked in the helper's refs. References die with the context that
// produced them.
type nativeInvoker struct {
	backend    *NativeBackend
	generation int
}

func (i *nativeInvoker) Invoke(ctx context.Context, ref any, args []any) (any, error) {
	index, ok := ref.(int)
	if !ok {
		return nil, backend.NewRuntimeError(nil, "invalid function reference %v", ref)
	}
	if args == nil {
		args = []any{}
	}
	literal, err := util.EncodeLiteral(args, false)
	if err != nil {
		return nil, backend.NewRuntimeError(err, "cannot encode the arguments")
	}
	code := helperName + ".marshal(" + helperName + ".refs[" + strconv.Itoa(index) + "](" +
		literal[1:len(literal)-1] + "))"
	return i.backend.worker.Do(ctx, func(h *Handle) (any, error) {
		if h.Generation() != i.generation {
			return nil, backend.NewRuntimeError(nil, "the function belongs to a discarded %s context", i.backend.kind)
		}
		text, err := h.Eval(code, false)
		if err != nil {
			return nil, err
		}
		return backend.DecodeWire(text, i)
	})
}
