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
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// gojaSpawner pretends to be an interpreter process by running the script in goja.
type gojaSpawner struct {
	mu     sync.Mutex
	calls  []Strategy
	fail   map[Strategy]bool
	garble map[Strategy]bool
	stderr string
	err    error
}

func newGojaSpawner() *gojaSpawner {
	return &gojaSpawner{fail: map[Strategy]bool{}, garble: map[Strategy]bool{}}
}

func (s *gojaSpawner) Strategies() []Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Strategy{}, s.calls...)
}

func (s *gojaSpawner) Run(ctx context.Context, argv []string, stdin []byte) (Result, error) {
	strategy, script, err := classify(argv, stdin)
	if err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, strategy)
	fail, garble, stderr, spawnErr := s.fail[strategy], s.garble[strategy], s.stderr, s.err
	s.mu.Unlock()
	if spawnErr != nil {
		return Result{}, spawnErr
	}
	if fail {
		return Result{ExitCode: 2, Stderr: []byte("SyntaxError: unexpected token")}, nil
	}
	if garble {
		return Result{Stdout: []byte("Welcome to the REPL\n> ")}, nil
	}
	vm := goja.New()
	var out strings.Builder
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		out.WriteString(call.Argument(0).String())
		out.WriteString("\n")
		return goja.Undefined()
	})
	_ = vm.Set("console", console)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	if _, err := vm.RunString(script); err != nil {
		return Result{ExitCode: 1, Stderr: []byte(err.Error())}, nil
	}
	return Result{Stdout: []byte(out.String()), Stderr: []byte(stderr)}, nil
}

func classify(argv []string, stdin []byte) (Strategy, string, error) {
	if stdin != nil {
		return StrategyPipe, string(stdin), nil
	}
	if len(argv) >= 3 && argv[len(argv)-2] == "-e" {
		return StrategyArgument, argv[len(argv)-1], nil
	}
	if len(argv) < 2 {
		return 0, "", errors.New("no script given")
	}
	data, err := os.ReadFile(argv[len(argv)-1])
	if err != nil {
		return 0, "", err
	}
	return StrategyTempFile, string(data), nil
}

func newTestInterpreter(name string, tempFile bool, evalString string) *Interpreter {
	return &Interpreter{
		Name:       name,
		Path:       "/opt/js/" + name,
		Command:    []string{"/opt/js/" + name},
		tempFile:   tempFile,
		evalString: evalString,
	}
}
