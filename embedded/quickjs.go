//go:build quickjs

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

	bq "github.com/buke/quickjs-go"
	"github.com/theirish81/jsengine/backend"
)

func init() {
	Register(backend.KindQuickJS, NewQuickJS)
}

// QuickJS is a QuickJS runtime and context pair.
type QuickJS struct {
	runtime *bq.Runtime
	ctx     *bq.Context
}

func NewQuickJS() (Native, error) {
	rt := bq.NewRuntime()
	if rt == nil {
		return nil, errors.New("cannot create the QuickJS runtime")
	}
	ctx := rt.NewContext()
	if ctx == nil {
		rt.Close()
		return nil, errors.New("cannot create the QuickJS context")
	}
	return &QuickJS{runtime: rt, ctx: ctx}, nil
}

func (q *QuickJS) Eval(code string, raw bool) (string, error) {
	v := q.ctx.Eval(code, bq.EvalFlagGlobal(true))
	defer v.Free()
	if v.IsException() {
		if err := q.ctx.Exception(); err != nil {
			return "", backend.NewProgramError(err.Error())
		}
		return "", backend.NewProgramError("uncaught exception")
	}
	if raw {
		return "", nil
	}
	return v.ToString(), nil
}

func (q *QuickJS) Close() {
	q.ctx.Close()
	q.runtime.Close()
}
