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

package backend

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Tags used by the in-engine marshalling helper to describe what it returned.
const (
	WireValue       = "value"
	WireFunction    = "function"
	WireUnsupported = "unsupported"
)

// UnsupportedTypeMessage is reported when a script returns something JSON cannot carry.
const UnsupportedTypeMessage = "Script returns a value with an unsupported type"

// maxSafeInteger is the largest integer a float64 represents exactly.
const maxSafeInteger = 1 << 53

// DecodeJSON decodes a JSON document produced by a backend into the unified value model.
func DecodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return Normalize(v)
}

// Normalize converts a backend value into one of nil, bool, int64, float64, string, []any, map[string]any or
// *Function. Integral numbers become int64 so that every backend agrees on the type of 1+1.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, int64, *Function:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, NewRuntimeError(err, "invalid number %q", t.String())
		}
		return normalizeFloat(f), nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return normalizeUnsigned(uint64(t)), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return normalizeUnsigned(t), nil
	case float32:
		return normalizeFloat(float64(t)), nil
	case float64:
		return normalizeFloat(t), nil
	case []byte:
		return string(t), nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	return nil, NewRuntimeError(nil, "%s: %T", UnsupportedTypeMessage, v)
}

func normalizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
		return f
	}
	if f == 0 && math.Signbit(f) {
		return f
	}
	return int64(f)
}

func normalizeUnsigned(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

// DecodeWire decodes the ["tag", payload] pair printed by the in-engine marshalling helper. Function
// payloads are reference numbers resolved by the invoker.
func DecodeWire(text string, invoker Invoker) (any, error) {
	var msg []json.RawMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil || len(msg) != 2 {
		return nil, NewRuntimeError(err, "malformed marshalling output %q", text)
	}
	var tag string
	if err := json.Unmarshal(msg[0], &tag); err != nil {
		return nil, NewRuntimeError(err, "malformed marshalling tag %q", text)
	}
	switch tag {
	case WireValue:
		v, err := DecodeJSON(string(msg[1]))
		if err != nil {
			return nil, NewRuntimeError(err, "cannot decode value")
		}
		return v, nil
	case WireFunction:
		var ref int
		if err := json.Unmarshal(msg[1], &ref); err != nil {
			return nil, NewRuntimeError(err, "malformed function reference %q", text)
		}
		return NewFunction(invoker, ref), nil
	case WireUnsupported:
		var reason string
		_ = json.Unmarshal(msg[1], &reason)
		return nil, NewRuntimeError(nil, "%s: %s", UnsupportedTypeMessage, reason)
	}
	return nil, NewRuntimeError(nil, "unknown marshalling tag %q", tag)
}

// DisplayText coerces a thrown value into display text.
func DisplayText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
