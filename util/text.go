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

// Package util holds the text codec shared by every backend: bytes to text decoding with a locale-aware
// fallback, and a JavaScript literal encoder used to embed arbitrary values inside generated source.
package util

import (
	"os"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

const utf8BOM = "\uFEFF"

// ToText decodes bytes into text. UTF-8 is tried first; bytes that are not valid UTF-8 are decoded with the
// charset of the current locale, falling back to Windows-1252 which accepts every byte.
func ToText(b []byte) string {
	if utf8.Valid(b) {
		return strings.TrimPrefix(string(b), utf8BOM)
	}
	if s, err := DecodeText(b, LocaleCharset()); err == nil {
		return s
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// DecodeText decodes bytes using the named charset (any name known to the WHATWG encoding index).
func DecodeText(b []byte, charset string) (string, error) {
	enc := lookupEncoding(charset)
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func lookupEncoding(charset string) encoding.Encoding {
	if charset != "" {
		if enc, err := htmlindex.Get(charset); err == nil {
			return enc
		}
	}
	return charmap.Windows1252
}

// LocaleCharset extracts the charset from the POSIX locale variables, e.g. "ja_JP.eucJP" gives "eucJP".
// An empty string means the locale does not name one.
func LocaleCharset() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	for _, name := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		_, charset, found := strings.Cut(value, ".")
		if !found {
			return ""
		}
		charset, _, _ = strings.Cut(charset, "@")
		return charset
	}
	return ""
}
