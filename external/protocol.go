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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/avast/retry-go/v5"
	"github.com/samber/lo"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/log"
	"github.com/theirish81/jsengine/util"
)

var (
	errCommandTooLong = errors.New("command line too long")
	errUnparsable     = errors.New("no result line in the interpreter output")
)

// Protocol drives one interpreter. The delivery strategy degrades as failures are observed, and the
// degradation is recorded on the shared Interpreter descriptor.
type Protocol struct {
	interpreter *Interpreter
	spawner     Spawner
	argMax      int
	argStrMax   int
	logger      *log.StreamerLogger
}

func NewProtocol(interpreter *Interpreter, spawner Spawner, logger *log.StreamerLogger) *Protocol {
	if spawner == nil {
		spawner = ExecSpawner{}
	}
	if logger == nil {
		logger = log.NewStreamerLogger(nil, nil, log.InfoChannelLevel)
	}
	total, single := ArgLimits()
	return &Protocol{
		interpreter: interpreter,
		spawner:     spawner,
		argMax:      total,
		argStrMax:   single,
		logger:      logger,
	}
}

// SetArgLimits overrides the command line budget detected from the host.
func (p *Protocol) SetArgLimits(total int, single int) {
	p.argMax, p.argStrMax = total, single
}

// Run evaluates source as a whole program and returns the value of its final expression.
func (p *Protocol) Run(ctx context.Context, source string) (any, error) {
	var result any
	used := StrategyTempFile
	err := retry.New(
		retry.Attempts(2),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errUnparsable) && used != StrategyTempFile
		}),
	).Do(func() error {
		var output string
		var err error
		used, output, err = p.deliver(ctx, source)
		if err != nil {
			return err
		}
		result, err = p.parse(output)
		if errors.Is(err, errUnparsable) && used != StrategyTempFile {
			p.restrict(used, err)
		}
		return err
	})
	return result, err
}

func (p *Protocol) deliver(ctx context.Context, source string) (Strategy, string, error) {
	strategy := p.interpreter.Strategy()
	if strategy == StrategyArgument {
		output, err := p.runWithArgument(ctx, source)
		switch {
		case err == nil:
			return StrategyArgument, output, nil
		case ctx.Err() != nil:
			return StrategyArgument, "", err
		case errors.Is(err, errCommandTooLong):
			p.logger.Debug(log.NewEvent(log.FallbackEventType, log.ProtocolComponent).
				WithMessage("source does not fit the command line").
				WithInterpreter(p.interpreter.Name).WithStrategy(StrategyArgument.String()).
				WithLength(len(source)))
		default:
			if p.interpreter.disableArgument() {
				p.logger.Warn(log.NewEvent(log.FallbackEventType, log.ProtocolComponent).
					WithMessage("inline-argument delivery disabled").
					WithInterpreter(p.interpreter.Name).WithStrategy(StrategyArgument.String()).WithErr(err))
			}
		}
		strategy = p.interpreter.next()
	}
	if strategy == StrategyPipe {
		output, err := p.runWithPipe(ctx, source)
		if err == nil || ctx.Err() != nil {
			return StrategyPipe, output, err
		}
		p.restrict(StrategyPipe, err)
	}
	output, err := p.runWithTempFile(ctx, source)
	return StrategyTempFile, output, err
}

func (p *Protocol) restrict(from Strategy, cause error) {
	if p.interpreter.restrictToTempFile() {
		p.logger.Warn(log.NewEvent(log.FallbackEventType, log.ProtocolComponent).
			WithMessage("delivery restricted to temp files").
			WithInterpreter(p.interpreter.Name).WithStrategy(from.String()).WithErr(cause))
	}
}

func (p *Protocol) runWithArgument(ctx context.Context, source string) (string, error) {
	literal, err := util.EncodeLiteral(source, true)
	if err != nil {
		return "", backend.NewRuntimeError(err, "cannot encode the source")
	}
	script := Bootstrap(literal)
	if len(script) > p.argStrMax {
		return "", errCommandTooLong
	}
	argv := append(append([]string{}, p.interpreter.Command...), p.interpreter.EvalString(), script)
	if commandLineLength(argv) > p.argMax {
		return "", errCommandTooLong
	}
	return p.run(ctx, StrategyArgument, argv, nil)
}

func (p *Protocol) runWithPipe(ctx context.Context, source string) (string, error) {
	script, err := p.script(source)
	if err != nil {
		return "", err
	}
	return p.run(ctx, StrategyPipe, p.interpreter.Command, []byte(script))
}

func (p *Protocol) runWithTempFile(ctx context.Context, source string) (string, error) {
	script, err := p.script(source)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "jsengine*.js")
	if err != nil {
		return "", backend.NewRuntimeError(err, "cannot create the temp file")
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.WriteString(script); err != nil {
		_ = f.Close()
		return "", backend.NewRuntimeError(err, "cannot write the temp file")
	}
	if err := f.Close(); err != nil {
		return "", backend.NewRuntimeError(err, "cannot write the temp file")
	}
	argv := append(append([]string{}, p.interpreter.Command...), f.Name())
	return p.run(ctx, StrategyTempFile, argv, nil)
}

func (p *Protocol) script(source string) (string, error) {
	literal, err := util.EncodeLiteral(source, false)
	if err != nil {
		return "", backend.NewRuntimeError(err, "cannot encode the source")
	}
	return Bootstrap(literal), nil
}

func (p *Protocol) run(ctx context.Context, strategy Strategy, argv []string, stdin []byte) (string, error) {
	p.logger.Debug(log.NewEvent(log.EvalEventType, log.ProtocolComponent).
		WithMessage("spawning interpreter").
		WithInterpreter(p.interpreter.Name).WithStrategy(strategy.String()))
	res, err := p.spawner.Run(ctx, argv, stdin)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", backend.NewRuntimeError(err, "cannot run %s", p.interpreter.Name)
	}
	if res.ExitCode != 0 {
		return "", backend.NewRuntimeError(nil, "%s returns non-zero value %d! Error msg: %s",
			p.interpreter.Name, res.ExitCode, strings.TrimSpace(util.ToText(res.Stderr)))
	}
	if len(res.Stderr) > 0 {
		p.logger.Warn(log.NewEvent(log.WarningEventType, log.ProtocolComponent).
			WithMessage(util.ToText(res.Stderr)).
			WithInterpreter(p.interpreter.Name).WithStrategy(strategy.String()))
	}
	return util.ToText(res.Stdout), nil
}

// parse extracts the result line, looking only at the last lines of the output.
func (p *Protocol) parse(output string) (any, error) {
	output = strings.ReplaceAll(strings.ReplaceAll(output, "\r\n", "\n"), "\r", "\n")
	tail := lo.Subset(strings.Split(output, "\n"), -5, 5)
	line, _, found := lo.FindLastIndexOf(tail, func(line string) bool {
		return strings.HasPrefix(line, resultPrefix)
	})
	if !found {
		return nil, p.unparsable(output, nil)
	}
	var message []json.RawMessage
	if err := json.Unmarshal([]byte(line), &message); err != nil {
		return nil, p.unparsable(output, err)
	}
	if len(message) != 3 {
		return nil, p.unparsable(output, fmt.Errorf("expected 3 elements, got %d", len(message)))
	}
	var ok bool
	if err := json.Unmarshal(message[1], &ok); err != nil {
		return nil, p.unparsable(output, err)
	}
	value, err := backend.DecodeJSON(string(message[2]))
	if err != nil {
		return nil, p.unparsable(output, err)
	}
	if !ok {
		return nil, backend.NewProgramError(backend.DisplayText(value))
	}
	return value, nil
}

func (p *Protocol) unparsable(output string, cause error) error {
	if cause != nil {
		cause = fmt.Errorf("%w: %w", errUnparsable, cause)
	} else {
		cause = errUnparsable
	}
	return backend.NewRuntimeError(cause, "unexpected output from %s:\n%s", p.interpreter.Name, output)
}

// commandLineLength estimates the length of the command line once arguments are quoted.
func commandLineLength(argv []string) int {
	length := len(argv) - 1
	for _, arg := range argv {
		length += len(arg)
		if arg == "" || strings.ContainsAny(arg, " \t\"") {
			length += 2 + strings.Count(arg, `"`) + strings.Count(arg, `\`)
		}
	}
	return length
}
