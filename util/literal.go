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

package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxLiteralDepth = 64

var jsonMarshalerType = reflect.TypeFor[json.Marshaler]()

// EncodeLiteral encodes a value as JavaScript literal text. The output is JSON except for NaN and the
// infinities, which are written as their JavaScript names. Byte slices are decoded as text. Map keys that
// are not strings are skipped. With asciiOnly every non-ASCII character is escaped, which keeps the result
// safe for command lines with an unknown encoding.
func EncodeLiteral(v any, asciiOnly bool) (string, error) {
	var sb strings.Builder
	if err := encodeLiteral(&sb, reflect.ValueOf(v), asciiOnly, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func encodeLiteral(sb *strings.Builder, rv reflect.Value, ascii bool, depth int) error {
	if depth > maxLiteralDepth {
		return errors.New("value is nested too deeply or circular")
	}
	if !rv.IsValid() {
		sb.WriteString("null")
		return nil
	}
	if rv.Type().Implements(jsonMarshalerType) && !(rv.Kind() == reflect.Pointer && rv.IsNil()) {
		data, err := json.Marshal(rv.Interface())
		if err != nil {
			return err
		}
		writeJSON(sb, data, ascii)
		return nil
	}
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			sb.WriteString("null")
			return nil
		}
		return encodeLiteral(sb, rv.Elem(), ascii, depth+1)
	case reflect.Bool:
		sb.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sb.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sb.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		sb.WriteString(formatFloat(rv.Float()))
	case reflect.String:
		quote(sb, rv.String(), ascii)
	case reflect.Slice:
		if rv.IsNil() {
			sb.WriteString("null")
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			quote(sb, ToText(rv.Bytes()), ascii)
			return nil
		}
		return encodeList(sb, rv, ascii, depth)
	case reflect.Array:
		return encodeList(sb, rv, ascii, depth)
	case reflect.Map:
		if rv.IsNil() {
			sb.WriteString("null")
			return nil
		}
		return encodeMap(sb, rv, ascii, depth)
	case reflect.Struct:
		data, err := json.Marshal(rv.Interface())
		if err != nil {
			return err
		}
		writeJSON(sb, data, ascii)
	default:
		return fmt.Errorf("cannot encode value of type %s", rv.Type())
	}
	return nil
}

func encodeList(sb *strings.Builder, rv reflect.Value, ascii bool, depth int) error {
	sb.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := encodeLiteral(sb, rv.Index(i), ascii, depth+1); err != nil {
			return err
		}
	}
	sb.WriteByte(']')
	return nil
}

func encodeMap(sb *strings.Builder, rv reflect.Value, ascii bool, depth int) error {
	if rv.Type().Key().Kind() != reflect.String {
		sb.WriteString("{}")
		return nil
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		quote(sb, k.String(), ascii)
		sb.WriteString(": ")
		if err := encodeLiteral(sb, rv.MapIndex(k), ascii, depth+1); err != nil {
			return err
		}
	}
	sb.WriteByte('}')
	return nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// writeJSON copies JSON produced by encoding/json, escaping non-ASCII characters when required.
func writeJSON(sb *strings.Builder, data []byte, ascii bool) {
	if !ascii {
		sb.Write(data)
		return
	}
	for _, r := range string(data) {
		if r < utf8.RuneSelf {
			sb.WriteRune(r)
			continue
		}
		writeEscaped(sb, r)
	}
}

func quote(sb *strings.Builder, s string, ascii bool) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\u2028', '\u2029':
			writeEscaped(sb, r)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				writeEscaped(sb, r)
			case ascii && r >= utf8.RuneSelf:
				writeEscaped(sb, r)
			default:
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}

func writeEscaped(sb *strings.Builder, r rune) {
	if r > 0xFFFF {
		r -= 0x10000
		fmt.Fprintf(sb, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		return
	}
	fmt.Fprintf(sb, `\u%04x`, r)
}
