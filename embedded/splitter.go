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
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Split is a program cut before its final statement. When that statement is an expression it lands in
// Expression. Other statements that have a completion value, such as if, try or blocks, land in Tail.
// Declarations stay in Statements, they have no value.
type Split struct {
	Statements string
	Expression string
	Tail       string
}

// SplitProgram separates the final statement from what precedes it. Trailing empty statements are ignored.
// It reports false when the code does not parse.
func SplitProgram(code string) (Split, bool) {
	program, err := parser.ParseFile(nil, "", code, 0)
	if err != nil {
		return Split{}, false
	}
	body := program.Body
	for len(body) > 0 {
		if _, empty := body[len(body)-1].(*ast.EmptyStatement); !empty {
			break
		}
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return Split{Statements: code}, true
	}
	last := body[len(body)-1]
	switch last.(type) {
	case *ast.VariableStatement, *ast.LexicalDeclaration, *ast.FunctionDeclaration, *ast.ClassDeclaration:
		return Split{Statements: code}, true
	}
	_, expression := last.(*ast.ExpressionStatement)
	base := program.File.Base()
	// parenthesised expressions may start before the reported index, so the end of the previous statement
	// is the second candidate
	candidates := []int{int(last.Idx0()) - base, 0}
	if len(body) > 1 {
		candidates[1] = int(body[len(body)-2].Idx1()) - base
	}
	for _, offset := range candidates {
		if offset < 0 || offset > len(code) {
			continue
		}
		split := Split{Statements: code[:offset]}
		if expression {
			split.Expression = strings.Trim(code[offset:], " \t\r\n;")
		} else {
			split.Tail = strings.TrimSpace(code[offset:])
		}
		if split.valid() {
			return split, true
		}
	}
	return Split{}, false
}

func (s Split) valid() bool {
	if _, err := parser.ParseFile(nil, "", s.Statements, 0); err != nil {
		return false
	}
	if s.Expression == "" {
		return s.Tail != "" && parses(s.Tail)
	}
	return parses("(\n" + s.Expression + "\n)")
}

func parses(code string) bool {
	_, err := parser.ParseFile(nil, "", code, 0)
	return err == nil
}
