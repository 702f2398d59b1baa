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

package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var timeout time.Duration

var evalCmd = &cobra.Command{
	Use:   "eval <code>",
	Short: "Evaluate JavaScript code and print its value.",
	Long: `
Evaluate JavaScript code and print its value. Source files given with --source run first, in order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		engine, err := newEngine(ctx, newLogger(), sourceFiles...)
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()
		res, err := engine.Eval(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <path/to/script.js>...",
	Short: "Run JavaScript files and print the value of the last one.",
	Long: `
Run JavaScript files. Every file but the last is appended to the program, the last one is evaluated and its value
printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		engine, err := newEngine(ctx, newLogger(), args[:len(args)-1]...)
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()
		data, err := os.ReadFile(args[len(args)-1])
		if err != nil {
			return err
		}
		res, err := engine.EvalBytes(ctx, data)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var callCmd = &cobra.Command{
	Use:   "call <identifier> [json-args...]",
	Short: "Call a JavaScript function defined by the source files.",
	Long: `
Call a JavaScript function defined by the source files. Arguments are parsed as JSON; those that are not valid JSON
are passed as strings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		engine, err := newEngine(ctx, newLogger(), sourceFiles...)
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()
		res, err := engine.Call(ctx, args[0], parseArgs(args[1:])...)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{evalCmd, runCmd, callCmd} {
		addOutputFlags(cmd)
		cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "give up after this long (0 means never)")
	}
	evalCmd.Flags().StringSliceVarP(&sourceFiles, "source", "s", nil, "JavaScript files to run first")
	callCmd.Flags().StringSliceVarP(&sourceFiles, "source", "s", nil, "JavaScript files defining the function")
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
