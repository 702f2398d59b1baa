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

package external

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgLimits(t *testing.T) {
	t.Setenv("JSENGINE_ARGMAX_PADDING", strings.Repeat("x", 4096))
	hostTotal, hostSingle := hostArgLimits()
	total, single := ArgLimits()
	assert.Equal(t, hostSingle, single)
	if environInArgs {
		assert.Equal(t, hostTotal-environSize(), total)
		assert.Less(t, total, hostTotal)
	} else {
		assert.Equal(t, hostTotal, total)
	}
	assert.Positive(t, total)
}
