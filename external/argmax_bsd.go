//go:build darwin || freebsd || netbsd || openbsd || dragonfly

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

func hostArgLimits() (int, int) {
	n, err := unix.SysctlUint32("kern.argmax")
	if err != nil || n == 0 {
		return 256 * 1024, 256 * 1024
	}
	return int(n), int(n)
}
