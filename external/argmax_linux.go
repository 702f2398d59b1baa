//go:build linux

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

import "golang.org/x/sys/unix"

const environInArgs = true

const (
	minArgMax = 128 * 1024
	// MAX_ARG_STRLEN is 32 pages, NUL included
	maxArgStrLen = 32*4096 - 1
)

func hostArgLimits() (int, int) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rlim); err != nil {
		return minArgMax, maxArgStrLen
	}
	if rlim.Cur == unix.RLIM_INFINITY {
		return 2 * 1024 * 1024, maxArgStrLen
	}
	return max(int(rlim.Cur/4), minArgMax), maxArgStrLen
}
