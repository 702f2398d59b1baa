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

import "os"

// ArgLimits returns the command line budget of the host: the whole command line and a single argument.
func ArgLimits() (total int, single int) {
	total, single = hostArgLimits()
	if environInArgs {
		total -= environSize()
	}
	return total, single
}

func environSize() int {
	size := 0
	for _, e := range os.Environ() {
		size += len(e) + 1
	}
	return size
}
