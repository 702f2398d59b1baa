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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRuntime matches every plumbing failure, CapabilityError included.
	ErrRuntime = errors.New("runtime error")
	// ErrProgram matches errors thrown by the JavaScript program itself.
	ErrProgram = errors.New("program error")
	// ErrCapability matches missing or unusable backends.
	ErrCapability = errors.New("capability error")
)

// ProgramError is raised when the script threw or failed to compile. Message is the engine's string
// representation of the thrown value.
type ProgramError struct {
	Message string
}

func NewProgramError(message string) *ProgramError {
	return &ProgramError{Message: message}
}

func (e *ProgramError) Error() string {
	return e.Message
}

func (e *ProgramError) Is(target error) bool {
	return target == ErrProgram
}

// RuntimeError signals a failure of the execution plumbing: non-zero exits, unparsable protocol output,
// values the bridge cannot convert.
type RuntimeError struct {
	Message string
	Cause   error
}

func NewRuntimeError(cause error, format string, args ...any) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *RuntimeError) Error() string {
	switch {
	case e.Cause == nil:
		return e.Message
	case e.Message == "":
		return e.Cause.Error()
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

func (e *RuntimeError) Is(target error) bool {
	return target == ErrRuntime
}

// CapabilityError is raised at construction time when no usable backend exists or the requested one is
// missing. Available lists the alternatives that could be used instead.
type CapabilityError struct {
	Message   string
	Available []string
}

func NewCapabilityError(available []string, format string, args ...any) *CapabilityError {
	return &CapabilityError{Message: fmt.Sprintf(format, args...), Available: available}
}

func (e *CapabilityError) Error() string {
	if len(e.Available) == 0 {
		return e.Message + "; no alternative backend is available, please install one of Gjs, CJS, QuickJS, " +
			"JavaScriptCore, Node.js"
	}
	return e.Message + "; available backends: " + strings.Join(e.Available, ", ")
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapability || target == ErrRuntime
}
