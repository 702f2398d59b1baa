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

// Package external runs JavaScript through interpreters living in other processes. There is no structured
// channel to those processes: the program is shipped as an argument, through stdin or through a temporary
// file, and an injected bootstrap prints the outcome as a JSON line at the end of the output.
package external

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/theirish81/jsengine/backend"
)

const incompatibleSuffix = "(incompatible)"

// Aliases maps lower-cased executable names (dots removed) to canonical interpreter names.
var Aliases = map[string]string{
	"chakracore":     "ChakraCore",
	"chakra":         "ChakraCore",
	"ch":             "ChakraCore",
	"cjs":            "CJS",
	"gjs":            "Gjs",
	"javascriptcore": "JavaScriptCore",
	"jsc":            "JavaScriptCore",
	"nodejs":         "Node.js",
	"node":           "Node.js",
	"quickjs":        "QuickJS",
	"qjs":            "QuickJS",
	"qjsc":           "QuickJS",
	"jsshell":        "SpiderMonkey",
	"spidermonkey":   "SpiderMonkey",
	"sm":             "SpiderMonkey",
	"js":             "SpiderMonkey",
	"v8":             "V8",
	"d8":             "V8",
	"xs":             "XS",
	"xst":            "XS",
	// no support for the ES6 features most scripts rely on
	"duktape":   "Duktape" + incompatibleSuffix,
	"duk":       "Duktape" + incompatibleSuffix,
	"hermes":    "Hermes" + incompatibleSuffix,
	"cscript":   "JScript" + incompatibleSuffix,
	"phantomjs": "PhantomJS" + incompatibleSuffix,
}

// InterpreterDefaults are the settings known to work for an interpreter. They take precedence over the
// caller's TempFile and EvalString; Args only apply when the caller gave none.
type InterpreterDefaults struct {
	TempFile   bool
	EvalString string
	Args       []string
}

var Defaults = map[string]InterpreterDefaults{
	"ChakraCore": {TempFile: true},
	"Node.js":    {TempFile: true, EvalString: "-e"},
	"QuickJS":    {TempFile: true, EvalString: "-e"},
	"V8":         {TempFile: true, EvalString: "-e"},
	"XS":         {TempFile: true, EvalString: "-e"},
}

// InterpreterOptions customises an interpreter descriptor.
type InterpreterOptions struct {
	// Name selects defaults, it is derived from the executable when empty.
	Name string
	// TempFile forbids the pipe strategy.
	TempFile bool
	// EvalString is the "evaluate string" flag, "true" means "-e", empty disables inline-argument delivery.
	EvalString string
	// Args are extra arguments placed right after the executable.
	Args []string
}

// Strategy is a way of delivering code to an interpreter.
type Strategy int

const (
	StrategyTempFile Strategy = iota
	StrategyPipe
	StrategyArgument
)

func (s Strategy) String() string {
	switch s {
	case StrategyArgument:
		return "argument"
	case StrategyPipe:
		return "pipe"
	}
	return "tempfile"
}

// Interpreter describes an external interpreter. Only the delivery flags change after construction, and
// only downwards: argument, then pipe, then temp file.
type Interpreter struct {
	Name    string
	Path    string
	Command []string

	mu         sync.Mutex
	tempFile   bool
	evalString string
}

// NewInterpreter resolves the interpreter executable and builds its descriptor. A missing executable is a
// CapabilityError.
func NewInterpreter(interpreter string, opts InterpreterOptions) (*Interpreter, error) {
	path, ok := Which(interpreter)
	if !ok {
		return nil, backend.NewCapabilityError(nil, "cannot find the given interpreter: %q", interpreter)
	}
	base := filepath.Base(path)
	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if alias, ok := Aliases[strings.ReplaceAll(strings.ToLower(name), ".", "")]; ok {
		name = alias
	}
	tempFile, evalString, args := opts.TempFile, NormalizeEvalString(opts.EvalString), opts.Args
	if defaults, ok := Defaults[name]; ok {
		tempFile, evalString = defaults.TempFile, defaults.EvalString
		if len(args) == 0 {
			args = defaults.Args
		}
	}
	return &Interpreter{
		Name:       name,
		Path:       path,
		Command:    append([]string{path}, args...),
		tempFile:   tempFile,
		evalString: evalString,
	}, nil
}

// NormalizeEvalString turns the user-facing evalstring setting into a flag, or "" when disabled.
func NormalizeEvalString(value string) string {
	if strings.HasPrefix(value, "-") {
		return value
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return "-e"
	}
	return ""
}

func (i *Interpreter) String() string {
	return fmt.Sprintf("%s @ %s", i.Name, i.Path)
}

// Incompatible tells whether the interpreter is known to lack the features scripts usually need.
func (i *Interpreter) Incompatible() bool {
	return strings.HasSuffix(i.Name, incompatibleSuffix)
}

func (i *Interpreter) TempFile() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tempFile
}

func (i *Interpreter) EvalString() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.evalString
}

// Strategy returns the preferred delivery strategy given the current flags.
func (i *Interpreter) Strategy() Strategy {
	i.mu.Lock()
	defer i.mu.Unlock()
	switch {
	case i.evalString != "":
		return StrategyArgument
	case !i.tempFile:
		return StrategyPipe
	}
	return StrategyTempFile
}

// next returns the strategy to use once the argument strategy is off the table for a call.
func (i *Interpreter) next() Strategy {
	if i.TempFile() {
		return StrategyTempFile
	}
	return StrategyPipe
}

// disableArgument permanently turns off inline-argument delivery. It reports whether anything changed.
func (i *Interpreter) disableArgument() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	changed := i.evalString != ""
	i.evalString = ""
	return changed
}

// restrictToTempFile permanently limits delivery to temp files. It reports whether anything changed.
func (i *Interpreter) restrictToTempFile() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	changed := !i.tempFile || i.evalString != ""
	i.tempFile, i.evalString = true, ""
	return changed
}

// Clone returns an independent copy, including the current delivery flags.
func (i *Interpreter) Clone() *Interpreter {
	out := &Interpreter{}
	_ = copier.CopyWithOption(out, i, copier.Option{DeepCopy: true})
	i.mu.Lock()
	out.tempFile, out.evalString = i.tempFile, i.evalString
	i.mu.Unlock()
	return out
}

// WithArgs returns a copy of the descriptor with extra arguments appended to the command. The receiver is
// left untouched, so a shared descriptor can be customised safely.
func (i *Interpreter) WithArgs(args ...string) *Interpreter {
	out := i.Clone()
	out.Command = append(out.Command, args...)
	return out
}
