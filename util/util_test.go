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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToText(t *testing.T) {
	t.Run("utf8", func(t *testing.T) {
		assert.Equal(t, "αβγ", ToText([]byte("αβγ")))
	})
	t.Run("bom", func(t *testing.T) {
		assert.Equal(t, "1+1", ToText([]byte("\xef\xbb\xbf1+1")))
	})
	t.Run("locale fallback", func(t *testing.T) {
		t.Setenv("LC_ALL", "")
		t.Setenv("LC_CTYPE", "")
		t.Setenv("LANG", "fr_FR.ISO-8859-1")
		assert.Equal(t, "café", ToText([]byte{'c', 'a', 'f', 0xe9}))
	})
	t.Run("unknown locale", func(t *testing.T) {
		t.Setenv("LC_ALL", "C")
		assert.Equal(t, "café", ToText([]byte{'c', 'a', 'f', 0xe9}))
	})
}

func TestLocaleCharset(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "ja_JP.eucJP@mod")
	assert.Equal(t, "eucJP", LocaleCharset())
}

func TestDecodeText(t *testing.T) {
	s, err := DecodeText([]byte{0xc4, 0xe3}, "gbk")
	require.NoError(t, err)
	assert.Equal(t, "你", s)
}

func TestEncodeLiteral(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		ascii bool
		out   string
	}{
		{"nil", nil, false, "null"},
		{"bool", true, false, "true"},
		{"int", 42, false, "42"},
		{"float", 2.5, false, "2.5"},
		{"nan", math.NaN(), false, "NaN"},
		{"inf", math.Inf(-1), false, "-Infinity"},
		{"string", "π≈3.14", false, `"π≈3.14"`},
		{"ascii string", "π≈3.14", true, `"\u03c0\u22483.14"`},
		{"astral", "😀", true, `"\ud83d\ude00"`},
		{"control", "a\nb\"\\", false, `"a\nb\"\\"`},
		{"line separator", "a\u2028b", false, `"a\u2028b"`},
		{"bytes", []byte("αβγ"), false, `"αβγ"`},
		{"list", []any{1, "a", nil}, false, `[1, "a", null]`},
		{"map", map[string]any{"b": 1, "a": []int{1}}, false, `{"a": [1], "b": 1}`},
		{"skip keys", map[int]string{1: "a"}, false, `{}`},
		{"struct", struct {
			Name string `json:"name"`
		}{"é"}, true, `{"name":"\u00e9"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := EncodeLiteral(tt.in, tt.ascii)
			require.NoError(t, err)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestEncodeLiteral_Circular(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_, err := EncodeLiteral(m, false)
	assert.Error(t, err)
}
