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
	"strings"
	"unicode"
	"unicode/utf8"
)

// SourceBuffer accumulates program text. Standing chunks were accepted by Append but not yet sent to the
// backend, committed chunks were.
type SourceBuffer struct {
	committed []string
	standing  []string
}

// Repair prepends a semicolon to code when gluing it to the preceding text would merge two statements,
// as in "1" followed by "(x)".
func (b *SourceBuffer) Repair(code string) string {
	first, ok := firstNonSpace(code)
	if !ok {
		return code
	}
	last, ok := b.lastChar()
	if !ok {
		return code
	}
	if (strings.ContainsRune("([`/", first) && unicode.IsDigit(last)) ||
		(strings.ContainsRune("`/", first) && !strings.ContainsRune(",;}+-*/%!=<>&|", last)) {
		return ";" + code
	}
	return code
}

// Stage repairs code and queues it as a standing chunk.
func (b *SourceBuffer) Stage(code string) string {
	code = b.Repair(code)
	b.standing = append(b.standing, code)
	return code
}

// Next returns the oldest standing chunk.
func (b *SourceBuffer) Next() (string, bool) {
	if len(b.standing) == 0 {
		return "", false
	}
	return b.standing[0], true
}

// Drop discards the oldest standing chunk.
func (b *SourceBuffer) Drop() {
	if len(b.standing) > 0 {
		b.standing = b.standing[1:]
	}
}

// Promote commits the oldest standing chunk.
func (b *SourceBuffer) Promote() {
	if chunk, ok := b.Next(); ok {
		b.Drop()
		b.committed = append(b.committed, chunk)
	}
}

func (b *SourceBuffer) Commit(code string) {
	b.committed = append(b.committed, code)
}

// With returns the committed program followed by code.
func (b *SourceBuffer) With(code string) string {
	if len(b.committed) == 0 {
		return code
	}
	return strings.Join(b.committed, "\n") + "\n" + code
}

// Source returns every chunk, committed then standing, joined by newlines.
func (b *SourceBuffer) Source() string {
	return strings.Join(append(append([]string{}, b.committed...), b.standing...), "\n")
}

func (b *SourceBuffer) lastChar() (rune, bool) {
	for _, chunks := range [][]string{b.standing, b.committed} {
		for i := len(chunks) - 1; i >= 0; i-- {
			if r, ok := lastNonSpace(chunks[i]); ok {
				return r, true
			}
		}
	}
	return 0, false
}

func firstNonSpace(s string) (rune, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}

func lastNonSpace(s string) (rune, bool) {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r, true
}

// terminate makes sure code ends with a semicolon.
func terminate(code string) string {
	code = strings.TrimRightFunc(code, unicode.IsSpace)
	if strings.HasSuffix(code, ";") {
		return code
	}
	return code + ";"
}

func blank(code string) bool {
	return strings.TrimSpace(code) == ""
}
