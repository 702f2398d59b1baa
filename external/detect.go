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
	"os/exec"
	"path/filepath"
)

// Candidates per platform, first found wins.
var (
	DarwinCandidates = []string{
		"/System/Library/Frameworks/JavaScriptCore.framework/Versions/A/Resources/jsc",
		"/System/Library/Frameworks/JavaScriptCore.framework/Versions/A/Helpers/jsc",
	}
	WindowsCandidates = []string{"qjs", "node", "nodejs"}
	UnixCandidates    = []string{"gjs", "cjs", "jsc", "qjs", "nodejs", "node"}
)

// Which resolves an executable name or path to an absolute path.
func Which(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, true
}

// Candidates returns the interpreter search order for the given GOOS.
func Candidates(goos string) []string {
	switch goos {
	case "darwin", "ios":
		return DarwinCandidates
	case "windows":
		return WindowsCandidates
	}
	return UnixCandidates
}

// Detect returns the first candidate for the platform that which resolves.
func Detect(goos string, which func(string) (string, bool)) (string, bool) {
	for _, candidate := range Candidates(goos) {
		if path, ok := which(candidate); ok {
			return path, true
		}
	}
	return "", false
}
