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
	"context"

	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/external"
)

// Function is a callable returned by an evaluation.
type Function = backend.Function

// Eval runs source on a throwaway engine.
func Eval(ctx context.Context, source string, options ...Option) (any, error) {
	engine, err := New(options...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = engine.Close() }()
	return engine.Eval(ctx, source)
}

// IsAvailable tells whether the backend kind can be used, according to DefaultRegistry.
func IsAvailable(kind backend.Kind) bool {
	return DefaultRegistry.IsAvailable(kind)
}

// SetExternalInterpreter installs the default external interpreter of DefaultRegistry.
func SetExternalInterpreter(path string, opts external.InterpreterOptions) (*external.Interpreter, error) {
	return DefaultRegistry.SetDefaultInterpreter(path, opts)
}
